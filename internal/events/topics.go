package events

// Topic constants for domain events emitted by the point-of-sale services.
const (
	TopicSaleConfirmed   = "sale.confirmed"
	TopicStockAdjusted   = "stock.adjusted"
	TopicCatalogImported = "catalog.imported"
	TopicCatalogCleared  = "catalog.cleared"
	TopicBackupCreated   = "backup.created"
	TopicBackupRestored  = "backup.restored"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicSaleConfirmed,
		TopicStockAdjusted,
		TopicCatalogImported,
		TopicCatalogCleared,
		TopicBackupCreated,
		TopicBackupRestored,
	}
}

// InventoryTopics lists the topics that change stock or product values.
func InventoryTopics() []string {
	return []string{TopicSaleConfirmed, TopicStockAdjusted, TopicCatalogImported, TopicCatalogCleared, TopicBackupRestored}
}
