package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.postJSON(ctx, "/auth/login", req, &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.postJSON(ctx, "/auth/register", req, &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

func (c *Client) Me(ctx context.Context) (UserMe, error) {
	var me UserMe
	if err := c.getJSON(ctx, "/users/me", nil, &me); err != nil {
		return UserMe{}, err
	}
	return me, nil
}

func (c *Client) ListBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	q := url.Values{}
	setIfNotEmpty(q, "q", f.Query)
	setIfNotEmpty(q, "subject", f.Subject)
	setIfNotEmpty(q, "level", f.Level)
	setID(q, "schoolId", f.SchoolID)
	addIDs(q, "ids", f.IDs)

	var books []Book
	if err := c.getJSON(ctx, "/books", q, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) GetBook(ctx context.Context, id int64) (Book, error) {
	var b Book
	if err := c.getJSON(ctx, fmt.Sprintf("/books/%d", id), nil, &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	var o Order
	if err := c.postJSON(ctx, "/orders", req, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (c *Client) MyOrders(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.getJSON(ctx, "/orders/mine", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) SearchDocuments(ctx context.Context, f DocumentFilter) ([]Document, error) {
	q := url.Values{}
	setIfNotEmpty(q, "subject", f.Subject)
	setIfNotEmpty(q, "level", f.Level)
	setIfNotEmpty(q, "type", f.Type)
	setIfNotEmpty(q, "year", f.Year)
	setID(q, "schoolId", f.SchoolID)
	setIfNotEmpty(q, "region", f.Region)

	var docs []Document
	if err := c.getJSON(ctx, "/documents/search", q, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) GetDocument(ctx context.Context, id int64) (Document, error) {
	var d Document
	if err := c.getJSON(ctx, fmt.Sprintf("/documents/%d", id), nil, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}

// UploadDocument publishes a document as a multipart form. The form is
// buffered so the request carries a Content-Length.
func (c *Client) UploadDocument(ctx context.Context, up DocumentUpload) (Document, error) {
	if up.Content == nil || up.Filename == "" {
		return Document{}, ErrEmptyUpload
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"title", up.Title},
		{"description", up.Description},
		{"subject", up.Subject},
		{"level", up.Level},
		{"type", up.Type},
		{"year", up.Year},
	}
	if up.SchoolID > 0 {
		fields = append(fields, [2]string{"schoolId", strconv.FormatInt(up.SchoolID, 10)})
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return Document{}, fmt.Errorf("write form field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", up.Filename)
	if err != nil {
		return Document{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return Document{}, fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Document{}, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/documents", nil, &buf)
	if err != nil {
		return Document{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	var d Document
	if err := decodeBody(resp.Body, http.MethodPost, "/documents", &d); err != nil {
		return Document{}, err
	}
	return d, nil
}

func (c *Client) ListSchools(ctx context.Context, region, city string) ([]School, error) {
	q := url.Values{}
	setIfNotEmpty(q, "region", region)
	setIfNotEmpty(q, "city", city)

	var schools []School
	if err := c.getJSON(ctx, "/schools", q, &schools); err != nil {
		return nil, err
	}
	return schools, nil
}

// DownloadDocument fetches a document file. The filename comes from the
// Content-Disposition header when the server sends one.
func (c *Client) DownloadDocument(ctx context.Context, id int64) (Download, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/documents/download/%d", id), nil, nil)
	if err != nil {
		return Download{}, err
	}
	resp, err := c.send(req)
	if err != nil {
		return Download{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Download{}, fmt.Errorf("read download: %w", err)
	}

	d := Download{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		d.Filename = params["filename"]
	}
	return d, nil
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setID(q url.Values, key string, id int64) {
	if id > 0 {
		q.Set(key, strconv.FormatInt(id, 10))
	}
}

func addIDs(q url.Values, key string, ids []int64) {
	for _, id := range ids {
		q.Add(key, strconv.FormatInt(id, 10))
	}
}
