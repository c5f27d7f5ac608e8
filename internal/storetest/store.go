// Package storetest provides an in-memory implementation of the domain
// repositories for service and handler tests.
//
// Store.InTx serializes transactions and restores a snapshot of the whole
// store when the callback fails, so rollback behaviour can be asserted
// without a database.
package storetest

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/banner"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/txn"
)

type productRow struct {
	product.Product
	categoryID *int64
}

type cartRow struct {
	id, userID int64
}

type cartItemRow struct {
	id, cartID, productID int64
	quantity              int
}

type user struct {
	id   int64
	name string
}

type state struct {
	seq        map[string]int64
	categories map[int64]category.Category
	products   map[int64]productRow
	carts      map[int64]cartRow
	cartItems  map[int64]cartItemRow
	orders     map[int64]order.Order
	banners    map[int64]banner.Banner
	users      map[int64]user
	apiKeys    map[string]auth.APIKeyInfo
}

func (s *state) clone() *state {
	orders := make(map[int64]order.Order, len(s.orders))
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		orders[id] = o
	}
	return &state{
		seq:        maps.Clone(s.seq),
		categories: maps.Clone(s.categories),
		products:   maps.Clone(s.products),
		carts:      maps.Clone(s.carts),
		cartItems:  maps.Clone(s.cartItems),
		orders:     orders,
		banners:    maps.Clone(s.banners),
		users:      maps.Clone(s.users),
		apiKeys:    maps.Clone(s.apiKeys),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// Store is an in-memory database.
type Store struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.Mutex // guards st
	st   *state

	// Now stamps created rows.
	Now func() time.Time
	// FailOn, when set, is consulted before every mutating call with the
	// operation name (e.g. "orders.Create"); a non-nil result is returned
	// as that call's error.
	FailOn func(op string) error
}

var _ txn.Runner = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		st: &state{
			seq:        map[string]int64{},
			categories: map[int64]category.Category{},
			products:   map[int64]productRow{},
			carts:      map[int64]cartRow{},
			cartItems:  map[int64]cartItemRow{},
			orders:     map[int64]order.Order{},
			banners:    map[int64]banner.Banner{},
			users:      map[int64]user{},
			apiKeys:    map[string]auth.APIKeyInfo{},
		},
		Now: time.Now,
	}
}

type txKey struct{}

// InTx runs fn atomically with respect to other transactions. A nested
// call joins the transaction already carried by ctx.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if owner, _ := ctx.Value(txKey{}).(*Store); owner == s {
		return fn(ctx)
	}
	ctx = context.WithValue(ctx, txKey{}, s)

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.restore(snapshot)
			panic(r)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()
	return fn(ctx)
}

func (s *Store) restore(st *state) {
	s.mu.Lock()
	s.st = st
	s.mu.Unlock()
}

func (s *Store) fail(op string) error {
	if s.FailOn == nil {
		return nil
	}
	return s.FailOn(op)
}

// Users returns a view of the store implementing auth.Repository.
func (s *Store) Users() *Users { return &Users{s} }

// Categories returns a view of the store implementing category.Repository.
func (s *Store) Categories() *Categories { return &Categories{s} }

// Products returns a view of the store implementing product.Repository.
func (s *Store) Products() *Products { return &Products{s} }

// Carts returns a view of the store implementing cart.Repository.
func (s *Store) Carts() *Carts { return &Carts{s} }

// Orders returns a view of the store implementing order.Repository.
func (s *Store) Orders() *Orders { return &Orders{s} }

// Banners returns a view of the store implementing banner.Repository.
func (s *Store) Banners() *Banners { return &Banners{s} }

// Users stores user accounts and API keys.
type Users struct{ s *Store }

var _ auth.Repository = (*Users)(nil)

// Add creates a user and binds keyHash to it. It returns the user id.
func (u *Users) Add(name string, role auth.Role, keyHash string) int64 {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	id := u.s.st.next("users")
	u.s.st.users[id] = user{id: id, name: name}
	if keyHash != "" {
		u.s.st.apiKeys[keyHash] = auth.APIKeyInfo{
			ID:       u.s.st.next("api_keys"),
			KeyHash:  keyHash,
			UserID:   id,
			UserName: name,
			Role:     role,
		}
	}
	return id
}

// FindByHash implements auth.Repository.
func (u *Users) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	info, ok := u.s.st.apiKeys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &info, nil
}

// Categories implements category.Repository.
type Categories struct{ s *Store }

var _ category.Repository = (*Categories)(nil)

func (r *Categories) List(_ context.Context) ([]category.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return sortedValues(r.s.st.categories, func(c category.Category) int64 { return c.ID }), nil
}

func (r *Categories) GetByID(_ context.Context, id int64) (*category.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.categories[id]
	if !ok {
		return nil, category.ErrNotFound
	}
	return &c, nil
}

func (r *Categories) ExistsByName(_ context.Context, name string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.exists(name, 0), nil
}

func (r *Categories) exists(name string, except int64) bool {
	for _, c := range r.s.st.categories {
		if c.Name == name && c.ID != except {
			return true
		}
	}
	return false
}

func (r *Categories) Create(_ context.Context, c *category.Category) error {
	if err := r.s.fail("categories.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.exists(c.Name, 0) {
		return category.ErrDuplicateName
	}
	c.ID = r.s.st.next("categories")
	r.s.st.categories[c.ID] = *c
	return nil
}

func (r *Categories) Update(_ context.Context, c *category.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.categories[c.ID]; !ok {
		return category.ErrNotFound
	}
	if r.exists(c.Name, c.ID) {
		return category.ErrDuplicateName
	}
	r.s.st.categories[c.ID] = *c
	return nil
}

func (r *Categories) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.categories[id]; !ok {
		return category.ErrNotFound
	}
	delete(r.s.st.categories, id)
	for pid, p := range r.s.st.products {
		if p.categoryID != nil && *p.categoryID == id {
			p.categoryID = nil
			r.s.st.products[pid] = p
		}
	}
	return nil
}

// Products implements product.Repository.
type Products struct{ s *Store }

var _ product.Repository = (*Products)(nil)

// resolve must be called with mu held.
func (r *Products) resolve(row productRow) product.Product {
	p := row.Product
	p.Category = nil
	if row.categoryID != nil {
		if c, ok := r.s.st.categories[*row.categoryID]; ok {
			p.Category = &c
		}
	}
	return p
}

func (r *Products) List(_ context.Context, f product.Filter) ([]product.Product, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []product.Product
	for _, row := range sortedValues(r.s.st.products, func(p productRow) int64 { return p.ID }) {
		p := r.resolve(row)
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
				continue
			}
		}
		if f.CategoryID != 0 && (row.categoryID == nil || *row.categoryID != f.CategoryID) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		matched = append(matched, p)
	}

	start := min(f.Page*f.Size, len(matched))
	end := min(start+f.Size, len(matched))
	return matched[start:end], len(matched), nil
}

func (r *Products) GetByID(_ context.Context, id int64) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.st.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := r.resolve(row)
	return &p, nil
}

// LockByIDs returns the products; exclusivity comes from InTx serialization.
func (r *Products) LockByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if row, ok := r.s.st.products[id]; ok {
			out = append(out, r.resolve(row))
		}
	}
	return out, nil
}

func (r *Products) Create(_ context.Context, p *product.Product) error {
	if err := r.s.fail("products.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.st.next("products")
	p.CreatedAt = r.s.Now()
	p.UpdatedAt = p.CreatedAt
	r.s.st.products[p.ID] = productRow{Product: *p, categoryID: p.CategoryID()}
	return nil
}

func (r *Products) Update(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	p.UpdatedAt = r.s.Now()
	r.s.st.products[p.ID] = productRow{Product: *p, categoryID: p.CategoryID()}
	return nil
}

func (r *Products) SetStock(_ context.Context, id int64, stock int) error {
	if err := r.s.fail("products.SetStock"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.st.products[id]
	if !ok {
		return product.ErrNotFound
	}
	row.Stock = stock
	r.s.st.products[id] = row
	return nil
}

func (r *Products) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.products[id]; !ok {
		return product.ErrNotFound
	}
	delete(r.s.st.products, id)
	for iid, it := range r.s.st.cartItems {
		if it.productID == id {
			delete(r.s.st.cartItems, iid)
		}
	}
	for oid, o := range r.s.st.orders {
		for i := range o.Items {
			if o.Items[i].ProductID != nil && *o.Items[i].ProductID == id {
				o.Items[i].ProductID = nil
			}
		}
		r.s.st.orders[oid] = o
	}
	return nil
}

// Carts implements cart.Repository.
type Carts struct{ s *Store }

var _ cart.Repository = (*Carts)(nil)

// load must be called with mu held.
func (r *Carts) load(row cartRow) *cart.Cart {
	c := &cart.Cart{ID: row.id, UserID: row.userID}
	for _, it := range sortedValues(r.s.st.cartItems, func(it cartItemRow) int64 { return it.id }) {
		if it.cartID != row.id {
			continue
		}
		c.Items = append(c.Items, cart.Item{
			ID:       it.id,
			CartID:   it.cartID,
			Product:  (&Products{r.s}).resolve(r.s.st.products[it.productID]),
			Quantity: it.quantity,
		})
	}
	return c
}

// findByUser must be called with mu held.
func (r *Carts) findByUser(userID int64) (cartRow, bool) {
	for _, c := range r.s.st.carts {
		if c.userID == userID {
			return c, true
		}
	}
	return cartRow{}, false
}

// CartCount returns the number of carts owned by userID.
func (r *Carts) CartCount(userID int64) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.st.carts {
		if c.userID == userID {
			n++
		}
	}
	return n
}

func (r *Carts) GetOrCreate(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.findByUser(userID)
	if !ok {
		row = cartRow{id: r.s.st.next("carts"), userID: userID}
		r.s.st.carts[row.id] = row
	}
	return r.load(row), nil
}

func (r *Carts) FindByUser(_ context.Context, userID int64) (*cart.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.findByUser(userID)
	if !ok {
		return nil, cart.ErrNotFound
	}
	return r.load(row), nil
}

// LockByUser is FindByUser; transactions are already serialized.
func (r *Carts) LockByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	return r.FindByUser(ctx, userID)
}

func (r *Carts) GetItem(_ context.Context, itemID int64) (*cart.OwnedItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.cartItems[itemID]
	if !ok {
		return nil, cart.ErrItemNotFound
	}
	return &cart.OwnedItem{
		Item: cart.Item{
			ID:       it.id,
			CartID:   it.cartID,
			Product:  (&Products{r.s}).resolve(r.s.st.products[it.productID]),
			Quantity: it.quantity,
		},
		OwnerID: r.s.st.carts[it.cartID].userID,
	}, nil
}

func (r *Carts) FindItem(_ context.Context, cartID, productID int64) (*cart.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range r.s.st.cartItems {
		if it.cartID == cartID && it.productID == productID {
			return &cart.Item{
				ID:       it.id,
				CartID:   it.cartID,
				Product:  (&Products{r.s}).resolve(r.s.st.products[it.productID]),
				Quantity: it.quantity,
			}, nil
		}
	}
	return nil, cart.ErrItemNotFound
}

func (r *Carts) SaveItem(_ context.Context, cartID, productID int64, quantity int) (int64, error) {
	if err := r.s.fail("carts.SaveItem"); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.st.cartItems {
		if it.cartID == cartID && it.productID == productID {
			it.quantity = quantity
			r.s.st.cartItems[id] = it
			return id, nil
		}
	}
	id := r.s.st.next("cart_items")
	r.s.st.cartItems[id] = cartItemRow{id: id, cartID: cartID, productID: productID, quantity: quantity}
	return id, nil
}

func (r *Carts) SetItemQuantity(_ context.Context, itemID int64, quantity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.st.cartItems[itemID]
	if !ok {
		return cart.ErrItemNotFound
	}
	it.quantity = quantity
	r.s.st.cartItems[itemID] = it
	return nil
}

func (r *Carts) DeleteItem(_ context.Context, itemID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.cartItems[itemID]; !ok {
		return cart.ErrItemNotFound
	}
	delete(r.s.st.cartItems, itemID)
	return nil
}

func (r *Carts) Clear(_ context.Context, cartID int64) error {
	if err := r.s.fail("carts.Clear"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, it := range r.s.st.cartItems {
		if it.cartID == cartID {
			delete(r.s.st.cartItems, id)
		}
	}
	return nil
}

// Orders implements order.Repository.
type Orders struct{ s *Store }

var _ order.Repository = (*Orders)(nil)

// Count returns the number of stored orders.
func (r *Orders) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.st.orders)
}

func (r *Orders) Create(_ context.Context, o *order.Order) error {
	if err := r.s.fail("orders.Create"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o.ID = r.s.st.next("orders")
	o.CreatedAt = r.s.Now()
	for i := range o.Items {
		o.Items[i].ID = r.s.st.next("order_items")
	}
	stored := *o
	stored.Items = slices.Clone(o.Items)
	r.s.st.orders[o.ID] = stored
	return nil
}

func (r *Orders) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Items = slices.Clone(o.Items)
	return &o, nil
}

func (r *Orders) list(keep func(order.Order) bool) []order.Order {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.Order
	for _, o := range r.s.st.orders {
		if keep(o) {
			o.Items = slices.Clone(o.Items)
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

func (r *Orders) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	return r.list(func(o order.Order) bool { return o.UserID == userID }), nil
}

func (r *Orders) ListAll(_ context.Context) ([]order.Order, error) {
	return r.list(func(order.Order) bool { return true }), nil
}

func (r *Orders) SetStatus(_ context.Context, id int64, status order.Status, payment order.PaymentStatus) error {
	if err := r.s.fail("orders.SetStatus"); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.st.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = payment
	r.s.st.orders[id] = o
	return nil
}

// Banners implements banner.Repository.
type Banners struct{ s *Store }

var _ banner.Repository = (*Banners)(nil)

func (r *Banners) List(_ context.Context, activeOnly bool) ([]banner.Banner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []banner.Banner
	for _, b := range r.s.st.banners {
		if !activeOnly || b.Active {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b banner.Banner) int {
		if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *Banners) GetByID(_ context.Context, id int64) (*banner.Banner, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.banners[id]
	if !ok {
		return nil, banner.ErrNotFound
	}
	return &b, nil
}

func (r *Banners) Create(_ context.Context, b *banner.Banner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = r.s.st.next("banners")
	b.CreatedAt = r.s.Now()
	b.UpdatedAt = b.CreatedAt
	r.s.st.banners[b.ID] = *b
	return nil
}

func (r *Banners) Update(_ context.Context, b *banner.Banner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.banners[b.ID]; !ok {
		return banner.ErrNotFound
	}
	b.UpdatedAt = r.s.Now()
	r.s.st.banners[b.ID] = *b
	return nil
}

func (r *Banners) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.banners[id]; !ok {
		return banner.ErrNotFound
	}
	delete(r.s.st.banners, id)
	return nil
}

func sortedValues[K comparable, V any](m map[K]V, key func(V) int64) []V {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b V) int { return cmp.Compare(key(a), key(b)) })
	return out
}
