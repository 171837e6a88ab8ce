package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/config"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/dmitrijs2005/gophstore/internal/server/repositories/repomanager"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps the computed offset well inside int range.
	MaxPage = 1_000_000

	imageURLExpiry = 15 * time.Minute
)

// Seams over the AWS SDK so tests can run without an object store.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ProductInput carries the client-editable fields of a product.
type ProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Quantity    int64
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
}

func (in *ProductInput) validate() error {
	var errs []error
	switch n := len([]rune(in.Name)); {
	case n == 0:
		errs = append(errs, invalid("name", "is required"))
	case n > maxProductName:
		errs = append(errs, invalid("name", fmt.Sprintf("must be at most %d characters", maxProductName)))
	}
	if len([]rune(in.Description)) > maxDescription {
		errs = append(errs, invalid("description", fmt.Sprintf("must be at most %d characters", maxDescription)))
	}
	if in.PriceCents < 0 {
		errs = append(errs, invalid("priceCents", "must not be negative"))
	}
	if in.Quantity < 0 {
		errs = append(errs, invalid("quantity", "must not be negative"))
	}
	return errors.Join(errs...)
}

// ProductQuery selects one page of a listing. Zero Page and PageSize pick
// the defaults.
type ProductQuery struct {
	Search   string
	Page     int
	PageSize int
}

func (q *ProductQuery) filter(userID int64) (models.ProductFilter, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = DefaultPageSize
	}
	var errs []error
	if q.Page < 1 {
		errs = append(errs, invalid("page", "must be at least 1"))
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		errs = append(errs, invalid("pageSize", fmt.Sprintf("must be between 1 and %d", MaxPageSize)))
	}
	if err := errors.Join(errs...); err != nil {
		return models.ProductFilter{}, err
	}
	if q.Page > MaxPage {
		return models.ProductFilter{}, invalid("page", fmt.Sprintf("must be at most %d", MaxPage))
	}
	return models.ProductFilter{
		UserID: userID,
		Search: strings.TrimSpace(q.Search),
		Offset: (q.Page - 1) * q.PageSize,
		Limit:  q.PageSize,
	}, nil
}

type ProductPage struct {
	Items    []*models.Product
	Total    int64
	Page     int
	PageSize int
}

// ProductService manages the per-user catalog. Every operation is scoped by
// the owner; someone else's product looks exactly like a missing one.
type ProductService struct {
	repos  repomanager.RepositoryManager
	config *config.Config
	log    logging.Logger
	now    func() time.Time
}

func NewProductService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *ProductService {
	return &ProductService{
		repos:  m,
		config: cfg,
		log:    log.With("module", "products"),
		now:    time.Now,
	}
}

func (s *ProductService) Create(ctx context.Context, userID int64, in ProductInput) (*models.Product, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &models.Product{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Quantity:    in.Quantity,
	}
	if err := s.repos.Products(s.repos.Conn()).Create(ctx, p); err != nil {
		return nil, s.storeError(ctx, "create product", err)
	}
	return p, nil
}

func (s *ProductService) Get(ctx context.Context, userID, id int64) (*models.Product, error) {
	p, err := s.repos.Products(s.repos.Conn()).Get(ctx, userID, id)
	if err != nil {
		return nil, s.storeError(ctx, "get product", err)
	}
	return p, nil
}

func (s *ProductService) List(ctx context.Context, userID int64, q ProductQuery) (*ProductPage, error) {
	f, err := q.filter(userID)
	if err != nil {
		return nil, err
	}

	items, total, err := s.repos.Products(s.repos.Conn()).List(ctx, f)
	if err != nil {
		return nil, s.storeError(ctx, "list products", err)
	}
	if items == nil {
		items = []*models.Product{}
	}
	return &ProductPage{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}

// Update replaces the editable fields of product id. The image key is kept.
func (s *ProductService) Update(ctx context.Context, userID, id int64, in ProductInput) (*models.Product, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := s.repos.Products(s.repos.Conn())
	p, err := repo.Get(ctx, userID, id)
	if err != nil {
		return nil, s.storeError(ctx, "get product", err)
	}

	p.Name = in.Name
	p.Description = in.Description
	p.PriceCents = in.PriceCents
	p.Quantity = in.Quantity

	if err := repo.Update(ctx, p); err != nil {
		return nil, s.storeError(ctx, "update product", err)
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repos.Products(s.repos.Conn()).Delete(ctx, userID, id); err != nil {
		return s.storeError(ctx, "delete product", err)
	}
	return nil
}

// ImageUploadURL reserves a fresh object key for the product image and
// returns it with a presigned PUT URL. The key replaces any previous one.
func (s *ProductService) ImageUploadURL(ctx context.Context, userID, id int64) (string, string, error) {
	repo := s.repos.Products(s.repos.Conn())
	if _, err := repo.Get(ctx, userID, id); err != nil {
		return "", "", s.storeError(ctx, "get product", err)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		s.log.Error(ctx, "s3 client setup failed", "error", err)
		return "", "", common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	key := s.imageKey(userID)

	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(imageURLExpiry))
	if err != nil {
		s.log.Error(ctx, "presign put failed", "product_id", id, "error", err)
		return "", "", common.ErrorInternal
	}

	if err := repo.SetImageKey(ctx, userID, id, key); err != nil {
		return "", "", s.storeError(ctx, "set image key", err)
	}
	return key, req.URL, nil
}

// ImageURL returns a presigned GET URL for the product image, or
// common.ErrorNotFound when no image was uploaded.
func (s *ProductService) ImageURL(ctx context.Context, userID, id int64) (string, error) {
	p, err := s.repos.Products(s.repos.Conn()).Get(ctx, userID, id)
	if err != nil {
		return "", s.storeError(ctx, "get product", err)
	}
	if p.ImageKey == "" {
		return "", common.ErrorNotFound
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		s.log.Error(ctx, "s3 client setup failed", "error", err)
		return "", common.ErrorInternal
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &p.ImageKey,
	}, s3.WithPresignExpires(imageURLExpiry))
	if err != nil {
		s.log.Error(ctx, "presign get failed", "product_id", id, "error", err)
		return "", common.ErrorInternal
	}
	return req.URL, nil
}

func (s *ProductService) imageKey(userID int64) string {
	d := s.now().UTC()
	return fmt.Sprintf("products/%d/%04d/%02d/%v", userID, d.Year(), int(d.Month()), uuid.New())
}

func (s *ProductService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		// MinIO serves buckets under the path, not a subdomain.
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// storeError passes common.ErrorNotFound through and hides everything else.
func (s *ProductService) storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	s.log.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
