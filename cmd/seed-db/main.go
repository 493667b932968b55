// Command seed-db loads the product catalog and the admin principal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/plantshop/internal/domain/product"
	"github.com/xenking/plantshop/internal/domain/user"
	"github.com/xenking/plantshop/internal/storage/postgres"
)

type productJSON struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Price    decimal.Decimal  `json:"price"`
	Rating   *decimal.Decimal `json:"rating"`
	Seller   string           `json:"seller"`
	Category string           `json:"category"`
	Image    string           `json:"image"`
}

type options struct {
	databaseURL   string
	productsFile  string
	adminEmail    string
	adminPassword string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "db/seed/products.json", "path to products JSON file, optionally .gz")
	flag.StringVar(&opts.adminEmail, "admin-email", "", "admin principal email (or SHOP_ADMIN_EMAIL env)")
	flag.StringVar(&opts.adminPassword, "admin-password", "", "admin principal password (or SHOP_ADMIN_PASSWORD env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.adminEmail == "" {
		opts.adminEmail = os.Getenv("SHOP_ADMIN_EMAIL")
	}
	if opts.adminPassword == "" {
		opts.adminPassword = os.Getenv("SHOP_ADMIN_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), opts.productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if opts.adminEmail == "" {
		lg.Info("No admin email given, skipping admin principal")
		return nil
	}
	if err := seedAdmin(ctx, lg, postgres.NewUserRepository(pool), opts.adminEmail, opts.adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

// readProducts decodes the catalog file. Files ending in .gz are
// decompressed on the fly.
func readProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

func (p productJSON) toProduct(now time.Time) (*product.Product, error) {
	category := product.Category(p.Category)
	if !category.Valid() {
		return nil, errors.Errorf("product %s: unknown category %q", p.ID, p.Category)
	}
	if p.ID == "" || p.Name == "" {
		return nil, errors.New("product without id or name")
	}
	rating := decimal.RequireFromString("4.5")
	if p.Rating != nil {
		rating = *p.Rating
	}
	return &product.Product{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Rating:    rating,
		Seller:    p.Seller,
		Category:  category,
		Image:     p.Image,
		UpdatedAt: now,
	}, nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo product.Repository, path string) error {
	lg.Info("Reading products file", zap.String("path", path))
	products, err := readProducts(path)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, raw := range products {
		p, err := raw.toProduct(now)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

// seedAdmin creates the admin principal, or promotes an existing user with
// the same email.
func seedAdmin(ctx context.Context, lg *zap.Logger, users user.Repository, email, password string) error {
	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := users.SetRole(ctx, existing.ID, user.RoleAdmin); err != nil {
			return errors.Wrap(err, "promote admin")
		}
		lg.Info("Promoted existing user to admin", zap.String("user_id", existing.ID))
		return nil
	case !errors.Is(err, user.ErrNotFound):
		return errors.Wrap(err, "look up admin")
	}

	if password == "" {
		return errors.New("admin password is required to create the admin principal")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	u := &user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         user.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, u); err != nil {
		return errors.Wrap(err, "create admin")
	}
	lg.Info("Created admin principal", zap.String("user_id", u.ID))
	return nil
}
