package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/app"
	"github.com/noah-isme/backend-kasir/internal/catalog"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/customer"
	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/promotion"
	"github.com/noah-isme/backend-kasir/internal/supplier"
	"github.com/noah-isme/backend-kasir/internal/user"
)

var seedActor = &model.Actor{UserID: "seeder", UserName: "seeder", Role: model.RoleAdmin}

func main() {
	var (
		force           = flag.Bool("force", false, "seed even when the catalog already has products")
		cashierPassword = flag.String("cashier-password", "cajero123", "password for the demo cashier account")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver == config.StoreMemory {
		log.Fatal("STORE_DRIVER=memory does not outlive the seeder; use redis or postgres")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deps, err := app.New(ctx, cfg, zerolog.Nop(), app.Options{})
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}
	defer deps.Close()

	existing, err := deps.Catalog.All(ctx)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}
	if len(existing) > 0 && !*force {
		log.Printf("catalog already has %d products, skipping (use -force to seed anyway)", len(existing))
		return
	}

	ids := seedCatalog(ctx, deps)
	seedPromotions(ctx, deps, ids)
	seedCustomers(ctx, deps)
	seedSuppliers(ctx, deps)
	seedCashier(ctx, deps, *cashierPassword)

	if _, err := deps.Backups.Create(ctx, false, "seed"); err != nil {
		log.Printf("initial backup: %v", err)
	}
	log.Println("seeding completed")
}

func seedCatalog(ctx context.Context, deps *app.Dependencies) map[string]string {
	products := []catalog.Input{
		{Name: "Yerba Mate 1kg", Category: "FOOD", Price: 4200, Cost: 2900, Stock: 40, MinStock: 10},
		{Name: "Azucar 1kg", Category: "FOOD", Price: 1350, Cost: 900, Stock: 60, MinStock: 15},
		{Name: "Fideos Tirabuzon 500g", Category: "FOOD", Price: 980, Cost: 610, Stock: 80, MinStock: 20},
		{Name: "Aceite Girasol 1.5L", Category: "FOOD", Price: 3100, Cost: 2300, Stock: 25, MinStock: 8},
		{Name: "Gaseosa Cola 2.25L", Category: "BEVERAGE", Price: 2600, Cost: 1700, Stock: 48, MinStock: 12},
		{Name: "Agua Mineral 2L", Category: "BEVERAGE", Price: 1100, Cost: 650, Stock: 72, MinStock: 24},
		{Name: "Cerveza Lata 473ml", Category: "BEVERAGE", Price: 1450, Cost: 980, Stock: 96, MinStock: 24},
		{Name: "Lavandina 1L", Category: "CLEANING", Price: 850, Cost: 520, Stock: 30, MinStock: 10},
		{Name: "Detergente 750ml", Category: "CLEANING", Price: 1650, Cost: 1050, Stock: 18, MinStock: 6},
		{Name: "Jabon de Tocador x3", Category: "PERSONAL_CARE", Price: 2100, Cost: 1400, Stock: 4, MinStock: 6},
		{Name: "Papel Higienico x4", Category: "PERSONAL_CARE", Price: 2400, Cost: 1650, Stock: 35, MinStock: 10},
		{Name: "Pilas AA x2", Category: "OTHER", Price: 1900, Cost: 1100, Stock: 12, MinStock: 4},
	}

	ids := make(map[string]string, len(products))
	for _, in := range products {
		p, err := deps.Catalog.Create(ctx, in, seedActor)
		if err != nil {
			log.Printf("seed product %s: %v", in.Name, err)
			continue
		}
		ids[in.Name] = p.ID
	}
	log.Printf("seeded %d products", len(ids))
	return ids
}

func seedPromotions(ctx context.Context, deps *app.Dependencies, ids map[string]string) {
	promotions := []promotion.Input{
		{Name: "Cerveza 3x2", Type: string(model.PromotionMxN), TargetProductID: ids["Cerveza Lata 473ml"], M: 3, N: 2},
		{Name: "Yerba 10% off", Type: string(model.PromotionPercentage), TargetProductID: ids["Yerba Mate 1kg"], Value: 10},
		{Name: "Agua pack x6", Type: string(model.PromotionBulk), TargetProductID: ids["Agua Mineral 2L"], MinQuantity: 6, Value: 950},
	}
	for _, in := range promotions {
		if in.TargetProductID == "" {
			continue
		}
		if _, err := deps.Promotions.Create(ctx, in); err != nil {
			log.Printf("seed promotion %s: %v", in.Name, err)
		}
	}
}

func seedCustomers(ctx context.Context, deps *app.Dependencies) {
	customers := []customer.Input{
		{Name: "Maria Gonzalez", Phone: "11-4567-8901", TaxID: "27-28456789-3"},
		{Name: "Almacen Don Jose", Phone: "11-2233-4455", Email: "donjose@example.com", TaxID: "30-71234567-9"},
		{Name: "Carlos Rodriguez", Phone: "11-9988-7766"},
	}
	for _, in := range customers {
		if _, err := deps.Customers.Create(ctx, in); err != nil {
			log.Printf("seed customer %s: %v", in.Name, err)
		}
	}
}

func seedSuppliers(ctx context.Context, deps *app.Dependencies) {
	suppliers := []supplier.Input{
		{Name: "Distribuidora del Sur", Contact: "Laura", Phone: "11-5555-0101", Email: "pedidos@delsur.example.com"},
		{Name: "Bebidas Norte SRL", Contact: "Martin", Phone: "11-5555-0202", Notes: "Entrega martes y viernes"},
	}
	for _, in := range suppliers {
		if _, err := deps.Suppliers.Create(ctx, in); err != nil {
			log.Printf("seed supplier %s: %v", in.Name, err)
		}
	}
}

func seedCashier(ctx context.Context, deps *app.Dependencies, password string) {
	_, err := deps.Users.Create(ctx, user.Input{Username: "cajero", Name: "Caja 1", Password: password, Role: string(model.RoleCashier)})
	if err != nil {
		log.Printf("seed cashier: %v", err)
		return
	}
	log.Println("seeded cashier account 'cajero'")
}
