// Seeds a demo activity with users, products, a combo and a register.
// With -demo it also runs one open → sell → complete → close cycle through
// the engine and prints the closure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"eventpos/internal/config"
	"eventpos/internal/dto"
	"eventpos/internal/engine"
	"eventpos/internal/identity"
	"eventpos/internal/infra"
	"eventpos/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	demo := flag.Bool("demo", false, "run a sample sale and close the register")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	s, err := seed(db)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().
		Str("activity", identity.ToExternal(s.activity.ID, identity.FamilyActivity).String()).
		Str("register", identity.ToExternal(s.register.ID, identity.FamilyCashRegister).String()).
		Str("operator", identity.ToExternal(s.operator.ID, identity.FamilyUser).String()).
		Msg("demo data ready")

	if !*demo {
		return
	}
	loc, _ := cfg.Location()
	eng := engine.New(db, engine.Options{StrictStock: cfg.StrictStock, Location: loc})
	closure, err := runDemo(context.Background(), eng, s)
	if err != nil {
		log.Fatal().Err(err).Msg("demo run failed")
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(closure)
}

type seeded struct {
	activity model.Activity
	operator model.User
	register model.CashRegister
	water    model.Product
	cash     model.PaymentMethod
}

// seed is idempotent: rows are matched on their natural keys.
func seed(db *gorm.DB) (*seeded, error) {
	s := &seeded{}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(model.Activity{Name: "Demo Fair"}).
			Attrs(model.Activity{IsActive: true}).
			FirstOrCreate(&s.activity).Error; err != nil {
			return err
		}
		if err := tx.Where(model.User{Username: "operator"}).
			Attrs(model.User{FullName: "Demo Operator", IsActive: true}).
			FirstOrCreate(&s.operator).Error; err != nil {
			return err
		}
		supervisor := model.User{}
		if err := tx.Where(model.User{Username: "supervisor"}).
			Attrs(model.User{FullName: "Demo Supervisor", IsActive: true}).
			FirstOrCreate(&supervisor).Error; err != nil {
			return err
		}

		products := []struct {
			code, name, price string
			stock, alert      int
		}{
			{"BEV-001", "Water 600ml", "1.50", 240, 24},
			{"SNK-001", "Chips", "2.25", 120, 12},
			{"FOD-001", "Hot dog", "4.00", 80, 10},
		}
		var chips, hotdog model.Product
		for i, p := range products {
			row := model.Product{}
			if err := tx.Where(model.Product{ActivityID: s.activity.ID, Code: p.code}).
				Attrs(model.Product{
					Name:            p.name,
					UnitPrice:       decimal.RequireFromString(p.price),
					InitialQuantity: p.stock,
					CurrentQuantity: p.stock,
					AlertQuantity:   p.alert,
					IsActive:        true,
				}).
				FirstOrCreate(&row).Error; err != nil {
				return err
			}
			switch i {
			case 0:
				s.water = row
			case 1:
				chips = row
			case 2:
				hotdog = row
			}
		}

		combo := model.Combo{}
		if err := tx.Where(model.Combo{ActivityID: s.activity.ID, Name: "Lunch combo"}).
			Attrs(model.Combo{ComboPrice: decimal.RequireFromString("6.75"), IsActive: true}).
			FirstOrCreate(&combo).Error; err != nil {
			return err
		}
		var items int64
		if err := tx.Model(&model.ComboItem{}).Where("combo_id = ?", combo.ID).Count(&items).Error; err != nil {
			return err
		}
		if items == 0 {
			if err := tx.Create(&[]model.ComboItem{
				{ComboID: combo.ID, ProductID: hotdog.ID, Quantity: 1},
				{ComboID: combo.ID, ProductID: chips.ID, Quantity: 1},
				{ComboID: combo.ID, ProductID: s.water.ID, Quantity: 1},
			}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where(model.CashRegister{ActivityID: s.activity.ID, RegisterNumber: 1}).
			Attrs(model.CashRegister{Name: "Main gate"}).
			FirstOrCreate(&s.register).Error; err != nil {
			return err
		}
		return tx.Where(model.PaymentMethod{Name: model.PaymentMethodCash}).First(&s.cash).Error
	})
	return s, err
}

func runDemo(ctx context.Context, eng *engine.Engine, s *seeded) (*dto.ClosureResponse, error) {
	registerID := identity.ToExternal(s.register.ID, identity.FamilyCashRegister)
	operatorID := identity.ToExternal(s.operator.ID, identity.FamilyUser)

	if !s.register.IsOpen {
		if _, err := eng.Registers.Open(ctx, registerID, dto.OpenCashRegisterRequest{OperatorUserID: operatorID}); err != nil {
			return nil, err
		}
	}

	waterID := identity.ToExternal(s.water.ID, identity.FamilyProduct)
	sale, err := eng.Sales.Create(ctx, dto.CreateSaleRequest{
		CashRegisterID: registerID,
		Items:          []dto.SaleItemRequest{{ProductID: &waterID, Quantity: 2}},
		CreatedBy:      &operatorID,
	})
	if err != nil {
		return nil, err
	}
	sale, err = eng.Sales.Complete(ctx, sale.ID, dto.CompleteSaleRequest{
		Payments: []dto.PaymentRequest{{
			PaymentMethodID: identity.ToExternal(s.cash.ID, identity.FamilyPaymentMethod),
			Amount:          sale.TotalAmount,
		}},
		ProcessedBy: operatorID,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("number", sale.TransactionNumber).Str("total", sale.TotalAmount.StringFixed(2)).Msg("demo sale completed")

	totals, err := eng.Sales.Summary(ctx, &registerID, "")
	if err != nil {
		return nil, err
	}
	log.Info().Int("completed", totals.CompletedTransactions).Str("total_sales", totals.TotalSales.StringFixed(2)).Msg("today so far")

	return eng.Registers.Close(ctx, registerID, dto.CloseCashRegisterRequest{
		CashDeclared: sale.TotalPaid.Sub(sale.Change),
		ClosedBy:     operatorID,
	})
}
