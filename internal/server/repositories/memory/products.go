package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

type Products struct{ table }

func (r *Products) Create(ctx context.Context, p *models.Product) error {
	defer r.lock()()

	if _, ok := r.s.st.users[p.UserID]; !ok {
		return common.ErrorNotFound
	}
	r.s.st.productSeq++
	now := r.s.now()
	p.ID = r.s.st.productSeq
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.st.products[p.ID] = *p
	return nil
}

func (r *Products) owned(userID, id int64) (models.Product, bool) {
	p, ok := r.s.st.products[id]
	if !ok || p.UserID != userID {
		return models.Product{}, false
	}
	return p, true
}

func (r *Products) Get(ctx context.Context, userID, id int64) (*models.Product, error) {
	defer r.lock()()

	p, ok := r.owned(userID, id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r *Products) List(ctx context.Context, f models.ProductFilter) ([]*models.Product, int64, error) {
	defer r.lock()()

	needle := strings.ToLower(strings.TrimSpace(f.Search))
	var matched []models.Product
	for _, p := range r.s.st.products {
		if p.UserID != f.UserID {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		matched = append(matched, p)
	}

	slices.SortFunc(matched, func(a, b models.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := int64(len(matched))
	out := make([]*models.Product, 0, f.Limit)
	for i := max(f.Offset, 0); i < len(matched) && len(out) < f.Limit; i++ {
		p := matched[i]
		out = append(out, &p)
	}
	return out, total, nil
}

func (r *Products) Update(ctx context.Context, p *models.Product) error {
	defer r.lock()()

	cur, ok := r.owned(p.UserID, p.ID)
	if !ok {
		return common.ErrorNotFound
	}
	cur.Name, cur.Description = p.Name, p.Description
	cur.PriceCents, cur.Quantity = p.PriceCents, p.Quantity
	cur.UpdatedAt = r.s.now()
	r.s.st.products[cur.ID] = cur
	p.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r *Products) Delete(ctx context.Context, userID, id int64) error {
	defer r.lock()()

	if _, ok := r.owned(userID, id); !ok {
		return common.ErrorNotFound
	}
	delete(r.s.st.products, id)
	return nil
}

func (r *Products) SetImageKey(ctx context.Context, userID, id int64, key string) error {
	defer r.lock()()

	p, ok := r.owned(userID, id)
	if !ok {
		return common.ErrorNotFound
	}
	p.ImageKey = key
	p.UpdatedAt = r.s.now()
	r.s.st.products[id] = p
	return nil
}
