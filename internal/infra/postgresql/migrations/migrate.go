package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/hostelcart/batch-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_shops",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ShopModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_shops_owner_id ON shops (owner_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ShopModel{})
			},
		},
		{
			ID: "000002_create_batches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
					return err
				}
				indexes := []string{
					// One OPEN batch per shop.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_one_open_per_shop ON batches (shop_id) WHERE status = 'OPEN'`,
					`CREATE INDEX IF NOT EXISTS idx_batches_status_cutoff ON batches (status, cutoff_time)`,
					`CREATE INDEX IF NOT EXISTS idx_batches_shop_id ON batches (shop_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BatchModel{})
			},
		},
		{
			ID: "000003_create_orders",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.OrderModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_orders_batch_id ON orders (batch_id) WHERE batch_id IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_orders_shop_status ON orders (shop_id, status)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_buyer_id ON orders (buyer_id)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.OrderModel{})
			},
		},
		{
			ID: "000004_create_notifications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created ON notifications (recipient_id, created_at DESC)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NotificationModel{})
			},
		},
		{
			ID: "000005_create_audit_logs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.AuditLogModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs (target_type, target_id, created_at DESC)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.AuditLogModel{})
			},
		},
	})

	return m.Migrate()
}
