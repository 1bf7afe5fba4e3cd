// Package integration contains the ERP Integration bounded context.
// This context manages the connection to Microsoft Dynamics 365 Business Central
// and the reconciliation of its master data into the local store.
//
// Key concepts:
//   - OAuthCredential / TokenState / OAuthState: the authorization-code token lifecycle
//   - Item, PriceList, PriceListLine, Customer: ERP master data keyed by their ERP ids
//   - SyncRunResult: outcome of one reconciliation run
//   - SettingsProvider, TokenStore, StateStore, repositories: ports implemented in infrastructure
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
