package render

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	"github.com/batipilot/batipilot/internal/observability/metrics"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported_format")

// Export is a rendered document ready to be served as a download.
type Export struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Service renders quotes and invoices into downloadable files.
type Service interface {
	ExportQuote(ctx context.Context, id string, format Format) (Export, error)
	ExportInvoice(ctx context.Context, id string, format Format) (Export, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Quotes   quotedomain.Service
	Invoices invoicedomain.Service
	Tiers    tiersdomain.Service
	Metrics  *metrics.DocumentMetrics `optional:"true"`
}

type service struct {
	log      *zap.Logger
	quotes   quotedomain.Service
	invoices invoicedomain.Service
	tiers    tiersdomain.Service
	metrics  *metrics.DocumentMetrics
}

func New(p Params) Service {
	return &service{
		log:      p.Log.Named("render.service"),
		quotes:   p.Quotes,
		invoices: p.Invoices,
		tiers:    p.Tiers,
		metrics:  p.Metrics,
	}
}

func (s *service) ExportQuote(ctx context.Context, id string, format Format) (Export, error) {
	detail, err := s.quotes.Get(ctx, id)
	if err != nil {
		return Export{}, err
	}
	client, addresses, err := s.client(ctx, detail.TiersID.String())
	if err != nil {
		return Export{}, err
	}
	export, err := s.render(FromQuote(detail, client, addresses), format)
	if err != nil {
		return Export{}, err
	}
	s.metrics.RecordExport("quote", string(format))
	return export, nil
}

func (s *service) ExportInvoice(ctx context.Context, id string, format Format) (Export, error) {
	detail, err := s.invoices.Get(ctx, id)
	if err != nil {
		return Export{}, err
	}
	client, addresses, err := s.client(ctx, detail.TiersID.String())
	if err != nil {
		return Export{}, err
	}
	export, err := s.render(FromInvoice(detail, client, addresses), format)
	if err != nil {
		return Export{}, err
	}
	s.metrics.RecordExport("invoice", string(format))
	return export, nil
}

func (s *service) client(ctx context.Context, tiersID string) (tiersdomain.Tiers, []tiersdomain.Address, error) {
	client, err := s.tiers.Get(ctx, tiersID)
	if err != nil {
		return tiersdomain.Tiers{}, nil, err
	}
	addresses, err := s.tiers.ListAddresses(ctx, tiersID)
	if err != nil {
		return tiersdomain.Tiers{}, nil, err
	}
	return client, addresses, nil
}

func (s *service) render(doc Document, format Format) (Export, error) {
	var (
		content     []byte
		contentType string
		err         error
	)
	switch format {
	case FormatPDF:
		contentType = "application/pdf"
		content, err = RenderPDF(doc)
	case FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		content, err = RenderXLSX(doc)
	case FormatCSV:
		contentType = "text/csv"
		content, err = RenderCSV(doc)
	default:
		return Export{}, ErrUnsupportedFormat
	}
	if err != nil {
		s.log.Error("render document",
			zap.String("number", doc.Number),
			zap.String("format", string(format)),
			zap.Error(err))
		return Export{}, err
	}
	return Export{
		FileName:    fmt.Sprintf("%s.%s", doc.Number, format),
		ContentType: contentType,
		Content:     content,
	}, nil
}
