// Package repository define las entidades y los contratos de persistencia
// del pipeline de ingestión (credenciales API y la caixa de entrada).
//
// Estas interfaces son independientes del almacenamiento subyacente.
// Las implementaciones concretas viven en internal/store/pg e internal/store/sqlite.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│      http handlers / auth / ingest / usage          │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│     CredentialRepository, InboxRepository           │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	               ┌────────┴────────┐
//	               ▼                 ▼
//	        ┌─────────────┐   ┌─────────────┐
//	        │  store/pg   │   │ store/sqlite│
//	        └─────────────┘   └─────────────┘
//
// Convenciones:
//   - PrincipalID se pasa explícitamente en métodos que lo requieren
//   - Context siempre es el primer parámetro
//   - Errores de dominio están en errors.go
package repository
