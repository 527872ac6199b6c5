// Package catalog loads the storefront seed file and applies it to the database.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	product "github.com/agromart/agromart-backend/internal/products"
	"github.com/agromart/agromart-backend/pkg/enums"
)

const defaultCouponDays = 30

// File is the top-level seed document.
type File struct {
	Admin      *AdminSeed     `yaml:"admin"`
	Categories []CategorySeed `yaml:"categories"`
	Products   []ProductSeed  `yaml:"products"`
	Coupons    []CouponSeed   `yaml:"coupons"`
}

type AdminSeed struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type CategorySeed struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
}

type ProductSeed struct {
	Name          string `yaml:"name"`
	Slug          string `yaml:"slug"`
	Category      string `yaml:"category"`
	Description   string `yaml:"description"`
	Unit          string `yaml:"unit"`
	Price         int64  `yaml:"price"`
	OriginalPrice *int64 `yaml:"original_price"`
	Stock         int    `yaml:"stock"`
	ImageURL      string `yaml:"image_url"`
}

type CouponSeed struct {
	Code          string           `yaml:"code"`
	Description   string           `yaml:"description"`
	Type          enums.CouponType `yaml:"type"`
	Value         decimal.Decimal  `yaml:"value"`
	MinOrderValue *int64           `yaml:"min_order_value"`
	MaxDiscount   *int64           `yaml:"max_discount"`
	UsageLimit    *int             `yaml:"usage_limit"`
	ValidDays     int              `yaml:"valid_days"`
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, fills defaults and validates references.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	applyDefaults(&f)
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyDefaults(f *File) {
	for i := range f.Categories {
		c := &f.Categories[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.Slug == "" {
			c.Slug = product.Slugify(c.Name)
		}
	}
	for i := range f.Products {
		p := &f.Products[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Slug == "" {
			p.Slug = product.Slugify(p.Name)
		}
		if p.Unit == "" {
			p.Unit = "unit"
		}
	}
	for i := range f.Coupons {
		c := &f.Coupons[i]
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if c.ValidDays <= 0 {
			c.ValidDays = defaultCouponDays
		}
	}
}

func (f *File) validate() error {
	categories := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.Name == "" || c.Slug == "" {
			return fmt.Errorf("category needs a name")
		}
		if categories[c.Slug] {
			return fmt.Errorf("duplicate category slug %q", c.Slug)
		}
		categories[c.Slug] = true
	}

	products := make(map[string]bool, len(f.Products))
	for _, p := range f.Products {
		switch {
		case p.Name == "" || p.Slug == "":
			return fmt.Errorf("product needs a name")
		case products[p.Slug]:
			return fmt.Errorf("duplicate product slug %q", p.Slug)
		case !categories[p.Category]:
			return fmt.Errorf("product %q references unknown category %q", p.Slug, p.Category)
		case p.Price < 0 || p.Stock < 0:
			return fmt.Errorf("product %q has negative price or stock", p.Slug)
		}
		products[p.Slug] = true
	}

	coupons := make(map[string]bool, len(f.Coupons))
	for _, c := range f.Coupons {
		switch {
		case c.Code == "":
			return fmt.Errorf("coupon needs a code")
		case coupons[c.Code]:
			return fmt.Errorf("duplicate coupon code %q", c.Code)
		case !c.Type.IsValid():
			return fmt.Errorf("coupon %q has invalid type %q", c.Code, c.Type)
		case !c.Value.IsPositive():
			return fmt.Errorf("coupon %q needs a positive value", c.Code)
		case c.Type == enums.CouponTypePercentage && c.Value.GreaterThan(decimal.NewFromInt(100)):
			return fmt.Errorf("coupon %q percentage exceeds 100", c.Code)
		}
		coupons[c.Code] = true
	}
	return nil
}
