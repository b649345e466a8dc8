package httppresentation

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FormatValidationError renders validator failures as a field -> message map.
func FormatValidationError(err error) map[string]string {
	out := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required", field)
		case "min":
			out[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			out[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "gt":
			out[field] = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
		case "url":
			out[field] = fmt.Sprintf("%s must be a valid URL", field)
		default:
			out[field] = fmt.Sprintf("%s is invalid", field)
		}
	}
	return out
}

type checkoutRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type checkoutResponse struct {
	OrderID     string    `json:"orderId"`
	SessionID   string    `json:"sessionId"`
	RedirectURL string    `json:"redirectUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type locationDTO struct {
	City   string `json:"city" validate:"max=100"`
	Region string `json:"region" validate:"max=100"`
}

type createProductRequest struct {
	Title       string          `json:"title" validate:"required,min=3,max=120"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price"`
	Quantity    *int            `json:"quantity" validate:"required,gte=0"`
	Unit        string          `json:"unit" validate:"omitempty,max=16"`
	Category    string          `json:"category" validate:"required,oneof=plastic paper metal glass electronic textile organic other"`
	Condition   string          `json:"condition" validate:"required,oneof=new used refurbished scrap"`
	Images      []string        `json:"images" validate:"max=10,dive,url"`
	Location    locationDTO     `json:"location"`
}

func (r createProductRequest) draft() product.Draft {
	return product.Draft{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    *r.Quantity,
		Unit:        r.Unit,
		Category:    product.Category(r.Category),
		Condition:   product.Condition(r.Condition),
		Images:      r.Images,
		Location:    product.Location{City: r.Location.City, Region: r.Location.Region},
	}
}

type updateProductRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=120"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=0"`
	Unit        *string          `json:"unit" validate:"omitempty,max=16"`
	Category    *string          `json:"category" validate:"omitempty,oneof=plastic paper metal glass electronic textile organic other"`
	Condition   *string          `json:"condition" validate:"omitempty,oneof=new used refurbished scrap"`
	Images      []string         `json:"images" validate:"omitempty,max=10,dive,url"`
	Location    *locationDTO     `json:"location"`
}

func (r updateProductRequest) patch() product.Patch {
	p := product.Patch{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		Images:      r.Images,
	}
	if r.Category != nil {
		c := product.Category(*r.Category)
		p.Category = &c
	}
	if r.Condition != nil {
		c := product.Condition(*r.Condition)
		p.Condition = &c
	}
	if r.Location != nil {
		p.Location = &product.Location{City: r.Location.City, Region: r.Location.Region}
	}
	return p
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=available paused"`
}

type productResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Available   int             `json:"available"`
	Unit        string          `json:"unit"`
	Category    string          `json:"category"`
	Condition   string          `json:"condition"`
	Images      []string        `json:"images"`
	Location    locationDTO     `json:"location"`
	OwnerID     string          `json:"ownerId"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func toProductResponse(p *product.Product) productResponse {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Available:   p.Available(),
		Unit:        p.Unit,
		Category:    string(p.Category),
		Condition:   string(p.Condition),
		Images:      images,
		Location:    locationDTO{City: p.Location.City, Region: p.Location.Region},
		OwnerID:     p.OwnerID,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type productListResponse struct {
	Items      []productResponse `json:"items"`
	Pagination pagination        `json:"pagination"`
}

type orderResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	ProductTitle     string          `json:"productTitle"`
	BuyerID          string          `json:"buyerId"`
	SellerID         string          `json:"sellerId"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	Status           string          `json:"status"`
	FailureReason    string          `json:"failureReason,omitempty"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	ExpiresAt        time.Time       `json:"expiresAt"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	CompletedAt      *time.Time      `json:"completedAt,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		ProductID:        o.ProductID,
		ProductTitle:     o.ProductTitle,
		BuyerID:          o.BuyerID,
		SellerID:         o.SellerID,
		Quantity:         o.Quantity,
		UnitPrice:        o.UnitPriceAtPurchase,
		TotalPrice:       o.TotalPrice,
		Status:           string(o.Status),
		FailureReason:    o.FailureReason,
		PaymentReference: o.ExternalPaymentReference,
		ExpiresAt:        o.ExpiresAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if !o.CompletedAt.IsZero() {
		t := o.CompletedAt
		resp.CompletedAt = &t
	}
	return resp
}

type orderListResponse struct {
	Items      []orderResponse `json:"items"`
	Pagination pagination      `json:"pagination"`
}

func toOrderList(p *apporder.Page) orderListResponse {
	items := make([]orderResponse, 0, len(p.Items))
	for _, o := range p.Items {
		items = append(items, toOrderResponse(o))
	}
	return orderListResponse{
		Items:      items,
		Pagination: pagination{Page: p.Page, Limit: p.Limit, Total: p.Total, Pages: p.Pages()},
	}
}

type webhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"eventId,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}
