package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/erp-billing/internal/backend"
	"github.com/noah-isme/erp-billing/internal/billing"
	"github.com/noah-isme/erp-billing/internal/invoice"
)

// Source loads profiles from the system of record.
type Source interface {
	GetVendor(ctx context.Context, id string) (invoice.Vendor, error)
	GetCustomer(ctx context.Context, id string) (invoice.Customer, error)
}

// Resolver looks up vendor and customer profiles, caching them in Redis.
type Resolver struct {
	Source Source
	Cache  *Cache
	Logger zerolog.Logger
}

func vendorKey(id string) string   { return "profile:vendor:" + id }
func customerKey(id string) string { return "profile:customer:" + id }

// Vendor returns the vendor profile for id.
func (r *Resolver) Vendor(ctx context.Context, id string) (invoice.Vendor, error) {
	return cached(ctx, r, vendorKey(id), func(ctx context.Context) (invoice.Vendor, error) {
		return r.Source.GetVendor(ctx, id)
	})
}

// Customer returns the customer profile for id.
func (r *Resolver) Customer(ctx context.Context, id string) (invoice.Customer, error) {
	return cached(ctx, r, customerKey(id), func(ctx context.Context) (invoice.Customer, error) {
		return r.Source.GetCustomer(ctx, id)
	})
}

func cached[T any](ctx context.Context, r *Resolver, key string, fetch func(context.Context) (T, error)) (T, error) {
	var value T
	hit, err := r.Cache.GetJSON(ctx, key, &value)
	if err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("profile cache read failed")
	}
	if hit && err == nil {
		return value, nil
	}
	value, err = fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := r.Cache.SetJSON(ctx, key, value); err != nil {
		r.Logger.Warn().Err(err).Str("key", key).Msg("profile cache write failed")
	}
	return value, nil
}

// ForBill resolves both parties of a bill concurrently. A party the backend
// does not know resolves to an empty profile so the invoice prints
// placeholders.
func (r *Resolver) ForBill(ctx context.Context, bill billing.PricedBill) (invoice.Vendor, invoice.Customer, error) {
	var (
		vendor   invoice.Vendor
		customer invoice.Customer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if bill.VendorID == "" {
			return nil
		}
		v, err := r.Vendor(gctx, bill.VendorID)
		if errors.Is(err, backend.ErrNotFound) {
			r.Logger.Warn().Str("vendor_id", bill.VendorID).Msg("vendor profile missing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve vendor %s: %w", bill.VendorID, err)
		}
		vendor = v
		return nil
	})
	g.Go(func() error {
		if bill.CustomerID == "" {
			return nil
		}
		c, err := r.Customer(gctx, bill.CustomerID)
		if errors.Is(err, backend.ErrNotFound) {
			r.Logger.Warn().Str("customer_id", bill.CustomerID).Msg("customer profile missing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve customer %s: %w", bill.CustomerID, err)
		}
		customer = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return invoice.Vendor{}, invoice.Customer{}, err
	}
	return vendor, customer, nil
}

// Invalidate drops cached profiles for the given vendor and customer ids.
func (r *Resolver) Invalidate(ctx context.Context, vendorID, customerID string) error {
	var keys []string
	if vendorID != "" {
		keys = append(keys, vendorKey(vendorID))
	}
	if customerID != "" {
		keys = append(keys, customerKey(customerID))
	}
	return r.Cache.Delete(ctx, keys...)
}
