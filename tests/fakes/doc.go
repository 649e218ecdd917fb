// Package fakes provides httptest-backed doubles for the services a sync run
// talks to: the local managed identity endpoint, Azure Key Vault, the Open edX
// APIs and the L&D ingestion API. It also carries an azcore.TokenCredential
// fake for the destination client-credentials flow.
//
// Fakes are hand written and record every request so tests can assert on
// ordering, headers and payloads.
//
// Usage:
//
//	edx := fakes.NewEdXServer(page1, page2)
//	defer edx.Close()
//	def.EdX.CatalogURL = edx.CatalogURL()
//	// run the engine, then inspect edx.Requests()
package fakes
