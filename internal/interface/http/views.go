package handlers

import "github.com/oksasatya/minha-cantina/internal/domain/entity"

type categoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toCategoryView(c *entity.Category) categoryView {
	return categoryView{ID: c.ID(), Name: c.Name()}
}

// productView carries the category name so listings need no second lookup.
type productView struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Price        string  `json:"price"`
	Description  *string `json:"description"`
	ImageURL     string  `json:"image_url,omitempty"`
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

func toProductView(p *entity.Product) productView {
	v := productView{
		ID:           p.ID(),
		Name:         p.Name(),
		Price:        p.Price().StringFixed(2),
		ImageURL:     p.ImageURL(),
		CategoryID:   p.Category().ID(),
		CategoryName: p.Category().Name(),
	}
	if d, ok := p.Description(); ok {
		v.Description = &d
	}
	return v
}

type userView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"username"`
}

func toUserView(u *entity.User) userView {
	return userView{ID: u.ID(), Name: u.Name(), Handle: u.Handle()}
}
