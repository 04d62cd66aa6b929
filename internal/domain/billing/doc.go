// Package billing provides the domain models of the receivables ledger in a multi-tenant application.
//
// This package implements the billing bounded context, which is responsible for:
//   - Registering customers and issuing invoices against them
//   - Correcting issued invoices with credit notes
//   - Quoting work as estimates and converting accepted estimates into invoices
//
// Key Aggregates:
//   - Customer: Billed party, numbered CUST-00001 by default
//   - Invoice: Draft, issued or void document, numbered INV-00001 by default
//   - CreditNote: Correction against an issued invoice, numbered CN-00001 by default
//   - Estimate: Quote that can be converted into a draft invoice, numbered EST-00001 by default
//
// Every aggregate is tenant-owned and implements shared.Numbered. A document
// number supplied by the caller is kept; an empty one is filled by the
// numbering stage of the lifecycle pipeline before the insert.
//
// The billing domain integrates with:
//   - Numbering domain: For per-tenant document sequences
//   - Tenancy domain: For the request-scoped current tenant
package billing
