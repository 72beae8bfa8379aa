package ports

import (
	"context"

	"github.com/rs/zerolog/log"
)

// RecordAudit registra la entrada; un fallo solo queda en el log (warn).
func RecordAudit(ctx context.Context, audit AuditLogger, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("organization_id", entry.OrganizationID).
			Str("action", entry.Action).
			Str("entity_id", entry.EntityID).
			Msg("auditoría: no se pudo registrar el evento")
	}
}

// InvalidateSummaries invalida los agregados cacheados; un fallo solo queda en el log (warn).
func InvalidateSummaries(ctx context.Context, cache StockSummaryCache, stockIDs ...string) {
	if cache == nil || len(stockIDs) == 0 {
		return
	}
	if err := cache.Invalidate(ctx, stockIDs...); err != nil {
		log.Warn().Err(err).Strs("stock_ids", stockIDs).Msg("caché: no se pudo invalidar el resumen de stock")
	}
}
