// Package core contains the approval domain contracts, the credential cache,
// backend resolution and the request boundary service. Backend adapters depend
// on this package; core must not depend on backend or transport packages.
package core
