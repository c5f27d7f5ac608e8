// Command seed-db loads the catalog, hero banners and users from a JSON
// file (optionally gzip-compressed) into the database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/repository"
)

type seedFile struct {
	Categories []string `json:"categories"`
	Products   []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Stock       int             `json:"stock"`
		ImageURL    string          `json:"imageUrl"`
		Category    string          `json:"category"`
	} `json:"products"`
	Banners []struct {
		ImageURL     string `json:"imageUrl"`
		Title        string `json:"title"`
		Subtitle     string `json:"subtitle"`
		DisplayOrder int    `json:"displayOrder"`
		Active       *bool  `json:"isActive"`
	} `json:"banners"`
	Users []seedUser `json:"users"`
}

type seedUser struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	APIKey string `json:"apiKey"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		adminKey     string
		apiKeyPepper string
		workers      int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or STORE_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&seedPath, "file", "db/seed/catalog.json", "path to the seed JSON file, .gz is decompressed")
	flag.StringVar(&adminKey, "admin-key", "", "API key of an extra admin@storefront.local user (or STORE_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.IntVar(&workers, "workers", 4, "concurrent inserts")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	databaseURL = firstNonEmpty(databaseURL, os.Getenv("STORE_DATABASE_URL"), os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	adminKey = firstNonEmpty(adminKey, os.Getenv("STORE_SEED_ADMIN_KEY"))
	apiKeyPepper = firstNonEmpty(apiKeyPepper, os.Getenv("STORE_API_KEY_PEPPER"))
	if apiKeyPepper == "" {
		lg.Fatal("API key pepper is required: set --api-key-pepper or STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := seeder{lg: lg, pepper: []byte(apiKeyPepper), workers: workers}
	if err := s.run(ctx, databaseURL, seedPath, adminKey); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type seeder struct {
	lg      *zap.Logger
	pepper  []byte
	workers int
	repo    *repository.Seeder
}

func (s *seeder) run(ctx context.Context, databaseURL, seedPath, adminKey string) error {
	data, err := readSeedFile(seedPath)
	if err != nil {
		return err
	}
	if adminKey != "" {
		data.Users = append(data.Users, seedUser{
			Email:  "admin@storefront.local",
			Name:   "Administrator",
			Role:   string(auth.RoleAdmin),
			APIKey: adminKey,
		})
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	s.repo = repository.NewSeeder(repository.NewDB(pool))

	categories, err := s.seedCategories(ctx, data)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	s.seedProducts(ctx, g, data, categories)
	s.seedBanners(ctx, g, data)
	s.seedUsers(ctx, g, data.Users)
	return g.Wait()
}

func readSeedFile(path string) (*seedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
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

	var data seedFile
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &data, nil
}

// seedCategories upserts every category named in the file, including those
// only referenced by products.
func (s *seeder) seedCategories(ctx context.Context, data *seedFile) (map[string]int64, error) {
	names := data.Categories
	for _, p := range data.Products {
		if p.Category != "" {
			names = append(names, p.Category)
		}
	}

	ids := make(map[string]int64, len(names))
	for _, name := range names {
		if _, ok := ids[name]; ok {
			continue
		}
		id, err := s.repo.Category(ctx, name)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	s.lg.Info("Seeded categories", zap.Int("count", len(ids)))
	return ids, nil
}

func (s *seeder) seedProducts(ctx context.Context, g *errgroup.Group, data *seedFile, categories map[string]int64) {
	for _, p := range data.Products {
		sp := repository.SeedProduct{
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price.Round(2),
			Stock:       p.Stock,
			ImageURL:    p.ImageURL,
		}
		if id, ok := categories[p.Category]; ok {
			sp.CategoryID = &id
		}
		g.Go(func() error {
			inserted, err := s.repo.Product(ctx, sp)
			if err != nil {
				return err
			}
			s.lg.Debug("Product", zap.String("name", sp.Name), zap.Bool("inserted", inserted))
			return nil
		})
	}
}

func (s *seeder) seedBanners(ctx context.Context, g *errgroup.Group, data *seedFile) {
	for _, b := range data.Banners {
		sb := repository.SeedBanner{
			ImageURL:     b.ImageURL,
			Title:        b.Title,
			Subtitle:     b.Subtitle,
			DisplayOrder: b.DisplayOrder,
			Active:       b.Active == nil || *b.Active,
		}
		g.Go(func() error {
			inserted, err := s.repo.Banner(ctx, sb)
			if err != nil {
				return err
			}
			s.lg.Debug("Banner", zap.String("image", sb.ImageURL), zap.Bool("inserted", inserted))
			return nil
		})
	}
}

func (s *seeder) seedUsers(ctx context.Context, g *errgroup.Group, users []seedUser) {
	for _, u := range users {
		g.Go(func() error {
			role, err := auth.ParseRole(strings.ToUpper(u.Role))
			if err != nil {
				return errors.Wrapf(err, "user %s", u.Email)
			}
			if u.APIKey == "" {
				return errors.Errorf("user %s has no api key", u.Email)
			}
			id, err := s.repo.User(ctx, u.Email, u.Name, role, auth.HashKey(s.pepper, u.APIKey))
			if err != nil {
				return err
			}
			s.lg.Info("Seeded user", zap.Int64("id", id), zap.String("email", u.Email), zap.String("role", string(role)))
			return nil
		})
	}
}
