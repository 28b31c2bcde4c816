// Package memstore keeps every repository in process memory. It backs the
// service and handler tests; one DB instance is shared by all the views so
// that order assembly sees the same carts and products as the cart service.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MikeMC777/mia-shop/internal/cart"
	"github.com/MikeMC777/mia-shop/internal/order"
	"github.com/MikeMC777/mia-shop/internal/product"
	"github.com/MikeMC777/mia-shop/internal/review"
	"github.com/MikeMC777/mia-shop/internal/user"
	"github.com/MikeMC777/mia-shop/internal/wishlist"
)

// Tx operations that FailNext can target.
const (
	OpInsertOrder = "insert_order"
	OpSaveStock   = "save_stock"
	OpDeleteCart  = "delete_cart"
)

// castUUID mirrors Postgres rejecting a malformed value for a uuid column,
// so tests see the same raw error a PG repository would get without its
// id check.
func castUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &pgconn.PgError{
			Severity: "ERROR",
			Code:     "22P02",
			Message:  fmt.Sprintf("invalid input syntax for type uuid: %q", id),
		}
	}
	return nil
}

type state struct {
	products map[string]product.Product
	lines    []cart.Line
	orders   map[string]order.Order
	seq      map[string]int
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]product.Product, len(s.products)),
		lines:    append([]cart.Line(nil), s.lines...),
		orders:   make(map[string]order.Order, len(s.orders)),
		seq:      make(map[string]int, len(s.seq)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

type DB struct {
	mu       sync.Mutex
	st       *state
	users      map[string]user.User
	wishlist   []wishlist.Entry
	categories []product.Category
	reviews    []review.Review
	failures   map[string]error
	now      func() time.Time
}

func New() *DB {
	return &DB{
		st: &state{
			products: map[string]product.Product{},
			orders:   map[string]order.Order{},
			seq:      map[string]int{},
		},
		users:    map[string]user.User{},
		failures: map[string]error{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// FailNext makes the next tx operation op return err.
func (d *DB) FailNext(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

func (d *DB) takeFailure(op string) error {
	err := d.failures[op]
	delete(d.failures, op)
	return err
}

func (d *DB) Products() *Products { return &Products{d: d} }
func (d *DB) Carts() *Carts       { return &Carts{d: d} }
func (d *DB) Orders() *Orders     { return &Orders{d: d} }
func (d *DB) Users() *Users       { return &Users{d: d} }
func (d *DB) Wishlist() *Wishlist { return &Wishlist{d: d} }
func (d *DB) Reviews() *Reviews   { return &Reviews{d: d} }

// ---- products ----

type Products struct{ d *DB }

var _ product.Repository = (*Products)(nil)

func (r *Products) Create(_ context.Context, p *product.Product) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.d.now()
	p.UpdatedAt = p.CreatedAt
	r.d.st.products[p.ID] = *p
	return nil
}

func (r *Products) GetByID(_ context.Context, id string) (*product.Product, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.st.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (r *Products) GetBySlug(_ context.Context, slug string) (*product.Product, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, p := range r.d.st.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

func (r *Products) CreateCategory(_ context.Context, c *product.Category) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.categories {
		if existing.Slug == c.Slug {
			return product.ErrCategoryExists
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.d.now()
	r.d.categories = append(r.d.categories, *c)
	return nil
}

func (r *Products) ListCategories(_ context.Context) ([]product.Category, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	out := []product.Category{}
	for _, c := range r.d.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stock is a test helper; it returns -1 for unknown products.
func (r *Products) Stock(id string) int {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	p, ok := r.d.st.products[id]
	if !ok {
		return -1
	}
	return p.StockQuantity
}

// SetStock overwrites the stock of an existing product.
func (r *Products) SetStock(id string, qty int) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if p, ok := r.d.st.products[id]; ok {
		p.StockQuantity = qty
		r.d.st.products[id] = p
	}
}

// ---- cart ----

type Carts struct{ d *DB }

var _ cart.Repository = (*Carts)(nil)

func linesOf(lines []cart.Line, userID string) []cart.Line {
	var out []cart.Line
	for _, l := range lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out
}

func (r *Carts) ListByUser(_ context.Context, userID string) ([]cart.Line, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return linesOf(r.d.st.lines, userID), nil
}

func (r *Carts) GetByID(_ context.Context, id string) (*cart.Line, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, l := range r.d.st.lines {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (r *Carts) GetByUserAndProduct(_ context.Context, userID, productID string) (*cart.Line, error) {
	if err := castUUID(productID); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, l := range r.d.st.lines {
		if l.UserID == userID && l.ProductID == productID {
			return &l, nil
		}
	}
	return nil, cart.ErrNotFound
}

func (r *Carts) Create(_ context.Context, l *cart.Line) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = r.d.now()
	l.UpdatedAt = l.CreatedAt
	r.d.st.lines = append(r.d.st.lines, *l)
	return nil
}

func (r *Carts) UpdateQuantity(_ context.Context, id string, qty int) error {
	if err := castUUID(id); err != nil {
		return err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for i := range r.d.st.lines {
		if r.d.st.lines[i].ID == id {
			r.d.st.lines[i].Quantity = qty
			r.d.st.lines[i].UpdatedAt = r.d.now()
			return nil
		}
	}
	return cart.ErrNotFound
}

func (r *Carts) Delete(_ context.Context, id string) error {
	if err := castUUID(id); err != nil {
		return err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for i, l := range r.d.st.lines {
		if l.ID == id {
			r.d.st.lines = append(r.d.st.lines[:i:i], r.d.st.lines[i+1:]...)
			return nil
		}
	}
	return cart.ErrNotFound
}

func (r *Carts) DeleteByUser(_ context.Context, userID string) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	r.d.st.lines = dropUser(r.d.st.lines, userID)
	return nil
}

func dropUser(lines []cart.Line, userID string) []cart.Line {
	out := lines[:0:0]
	for _, l := range lines {
		if l.UserID != userID {
			out = append(out, l)
		}
	}
	return out
}

// ---- orders ----

type Orders struct{ d *DB }

var _ order.Store = (*Orders)(nil)

// InTx serialises transactions on the DB mutex. fn works on a staged copy
// that replaces the live state only when fn succeeds.
func (r *Orders) InTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := r.d.st.clone()
	if err := fn(ctx, &memTx{d: r.d, st: staged}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.d.st = staged
	return nil
}

func (r *Orders) GetByID(_ context.Context, id string) (*order.Order, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return copyOrder(o), nil
}

func (r *Orders) GetByNumber(_ context.Context, number string) (*order.Order, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, o := range r.d.st.orders {
		if o.Number == number {
			return copyOrder(o), nil
		}
	}
	return nil, order.ErrNotFound
}

func (r *Orders) ListByUser(_ context.Context, userID string, limit, offset int) ([]order.Order, int, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()

	var all []order.Order
	for _, o := range r.d.st.orders {
		if o.UserID == userID {
			all = append(all, *copyOrder(o))
		}
	}
	seq := r.d.st.seq
	sort.Slice(all, func(i, j int) bool { return seq[all[i].ID] > seq[all[j].ID] })

	total := len(all)
	if offset >= total {
		return []order.Order{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *Orders) UpdateStatus(_ context.Context, id string, status order.Status, paymentStatus order.PaymentStatus) error {
	if err := castUUID(id); err != nil {
		return err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	o, ok := r.d.st.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	if status != "" {
		o.Status = status
	}
	if paymentStatus != "" {
		o.PaymentStatus = paymentStatus
	}
	o.UpdatedAt = r.d.now()
	r.d.st.orders[id] = o
	return nil
}

func (r *Orders) MarkPaid(_ context.Context, number string) (bool, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for id, o := range r.d.st.orders {
		if o.Number != number {
			continue
		}
		if o.PaymentStatus == order.PaymentPaid {
			return false, nil
		}
		o.PaymentStatus = order.PaymentPaid
		o.UpdatedAt = r.d.now()
		r.d.st.orders[id] = o
		return true, nil
	}
	return false, order.ErrNotFound
}

func copyOrder(o order.Order) *order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return &o
}

type memTx struct {
	d  *DB
	st *state
}

func (t *memTx) CartLines(_ context.Context, userID string) ([]cart.Line, error) {
	return linesOf(t.st.lines, userID), nil
}

func (t *memTx) LockProducts(_ context.Context, ids []string) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (t *memTx) SaveStock(_ context.Context, productID string, qty int) error {
	if err := t.d.takeFailure(OpSaveStock); err != nil {
		return err
	}
	p, ok := t.st.products[productID]
	if !ok {
		return product.ErrNotFound
	}
	p.StockQuantity = qty
	p.UpdatedAt = t.d.now()
	t.st.products[productID] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *order.Order) error {
	if err := t.d.takeFailure(OpInsertOrder); err != nil {
		return err
	}
	for _, existing := range t.st.orders {
		if existing.Number == o.Number {
			return order.ErrOrderNumberTaken
		}
	}
	o.CreatedAt = t.d.now()
	o.UpdatedAt = o.CreatedAt
	t.st.orders[o.ID] = *copyOrder(*o)
	t.st.seq[o.ID] = len(t.st.seq) + 1
	return nil
}

func (t *memTx) DeleteCartLines(_ context.Context, userID string) error {
	if err := t.d.takeFailure(OpDeleteCart); err != nil {
		return err
	}
	t.st.lines = dropUser(t.st.lines, userID)
	return nil
}

// ---- users ----

type Users struct{ d *DB }

var _ user.Repository = (*Users)(nil)

func (r *Users) Create(_ context.Context, u *user.User) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.ErrAlreadyExist
		}
	}
	u.CreatedAt = r.d.now()
	u.UpdatedAt = u.CreatedAt
	r.d.users[u.ID] = *u
	return nil
}

func (r *Users) GetByID(_ context.Context, id string) (*user.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	u, ok := r.d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, u := range r.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, user.ErrNotFound
}

// SetSuperuser is a test helper for granting admin rights.
func (r *Users) SetSuperuser(id string, admin bool) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if u, ok := r.d.users[id]; ok {
		u.IsSuperuser = admin
		r.d.users[id] = u
	}
}

// SetActive is a test helper for deactivating accounts.
func (r *Users) SetActive(id string, active bool) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	if u, ok := r.d.users[id]; ok {
		u.IsActive = active
		r.d.users[id] = u
	}
}

// ---- wishlist ----

type Wishlist struct{ d *DB }

var _ wishlist.Repository = (*Wishlist)(nil)

func (r *Wishlist) ListByUser(_ context.Context, userID string) ([]wishlist.Entry, error) {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	var out []wishlist.Entry
	for i := len(r.d.wishlist) - 1; i >= 0; i-- {
		if e := r.d.wishlist[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Wishlist) GetByID(_ context.Context, id string) (*wishlist.Entry, error) {
	if err := castUUID(id); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, e := range r.d.wishlist {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, wishlist.ErrNotFound
}

func (r *Wishlist) GetByUserAndProduct(_ context.Context, userID, productID string) (*wishlist.Entry, error) {
	if err := castUUID(productID); err != nil {
		return nil, err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, e := range r.d.wishlist {
		if e.UserID == userID && e.ProductID == productID {
			return &e, nil
		}
	}
	return nil, wishlist.ErrNotFound
}

func (r *Wishlist) Create(_ context.Context, e *wishlist.Entry) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.wishlist {
		if existing.UserID == e.UserID && existing.ProductID == e.ProductID {
			return wishlist.ErrAlreadyExist
		}
	}
	e.CreatedAt = r.d.now()
	r.d.wishlist = append(r.d.wishlist, *e)
	return nil
}

func (r *Wishlist) Delete(_ context.Context, id string) error {
	if err := castUUID(id); err != nil {
		return err
	}
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for i, e := range r.d.wishlist {
		if e.ID == id {
			r.d.wishlist = append(r.d.wishlist[:i:i], r.d.wishlist[i+1:]...)
			return nil
		}
	}
	return wishlist.ErrNotFound
}

// ---- reviews ----

type Reviews struct{ d *DB }

var _ review.Repository = (*Reviews)(nil)

func (r *Reviews) Create(_ context.Context, rv *review.Review) error {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	for _, existing := range r.d.reviews {
		if existing.UserID == rv.UserID && existing.ProductID == rv.ProductID {
			return review.ErrAlreadyExist
		}
	}
	rv.CreatedAt = r.d.now()
	r.d.reviews = append(r.d.reviews, *rv)
	return nil
}

// Count is a test helper.
func (r *Reviews) Count() int {
	r.d.mu.Lock()
	defer r.d.mu.Unlock()
	return len(r.d.reviews)
}
