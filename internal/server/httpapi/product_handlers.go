package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/gophstore/internal/server/services"
)

// productID reads the :id path parameter. Malformed ids cannot name any
// product, so they are reported as not found.
func productID(c echo.Context) (int64, error) {
	var id int64
	if err := echo.PathParamsBinder(c).MustInt64("id", &id).BindError(); err != nil || id <= 0 {
		return 0, errNotFound
	}
	return id, nil
}

func (a *API) listProducts(c echo.Context) error {
	var q services.ProductQuery
	err := echo.QueryParamsBinder(c).
		String("search", &q.Search).
		Int("page", &q.Page).
		Int("pageSize", &q.PageSize).
		BindError()
	if err != nil {
		return newAPIError(http.StatusBadRequest, "validation_error", "page and pageSize must be integers")
	}

	page, err := a.products.List(c.Request().Context(), currentUser(c).ID, q)
	if err != nil {
		return err
	}

	items := make([]productResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, newProductResponse(p))
	}
	return c.JSON(http.StatusOK, productListResponse{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize})
}

func (a *API) createProduct(c echo.Context) error {
	req := new(productRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	p, err := a.products.Create(c.Request().Context(), currentUser(c).ID, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newProductResponse(p))
}

func (a *API) getProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	p, err := a.products.Get(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newProductResponse(p))
}

func (a *API) updateProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}
	req := new(productRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	p, err := a.products.Update(c.Request().Context(), currentUser(c).ID, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newProductResponse(p))
}

func (a *API) deleteProduct(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	if err := a.products.Delete(c.Request().Context(), currentUser(c).ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *API) productImageUploadURL(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	key, url, err := a.products.ImageUploadURL(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, imageURLResponse{Key: key, URL: url})
}

func (a *API) productImageURL(c echo.Context) error {
	id, err := productID(c)
	if err != nil {
		return err
	}

	url, err := a.products.ImageURL(c.Request().Context(), currentUser(c).ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, imageURLResponse{URL: url})
}
