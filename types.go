package testlens

import (
	"github.com/jward/testlens/internal/analysis"
	"github.com/jward/testlens/internal/store"
)

// Public type aliases for internal analysis and store types used by the
// Analyzer, Engine and QueryBuilder APIs.

type Definition = analysis.Definition
type TestProfile = analysis.TestProfile
type AssociationMap = analysis.AssociationMap
type ImportSet = analysis.ImportSet
type ImportedSymbol = analysis.ImportedSymbol
type FixtureResolver = analysis.FixtureResolver
type NestingMode = analysis.NestingMode

type Store = store.Store
type Snapshot = store.Snapshot
type File = store.File

const (
	NestingFlat  = analysis.NestingFlat
	NestingStack = analysis.NestingStack
)
