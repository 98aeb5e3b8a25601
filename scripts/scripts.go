// Package scripts bundles the Risor fixture scripts shipped with testlens.
package scripts

import "embed"

// FS holds the bundled scripts, rooted at this directory.
//
//go:embed fixtures/*.risor
var FS embed.FS

// PytestFixtures is the bundled pytest fixture script within FS.
const PytestFixtures = "fixtures/pytest.risor"
