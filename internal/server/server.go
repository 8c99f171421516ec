// Package server wires every domain service behind the HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/auth"
	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/auth/token"
	"github.com/batipilot/batipilot/internal/catalog"
	catalogdomain "github.com/batipilot/batipilot/internal/catalog/domain"
	"github.com/batipilot/batipilot/internal/config"
	"github.com/batipilot/batipilot/internal/equipment"
	equipmentdomain "github.com/batipilot/batipilot/internal/equipment/domain"
	"github.com/batipilot/batipilot/internal/invoice"
	invoicedomain "github.com/batipilot/batipilot/internal/invoice/domain"
	"github.com/batipilot/batipilot/internal/numbering"
	"github.com/batipilot/batipilot/internal/observability"
	obslogger "github.com/batipilot/batipilot/internal/observability/logger"
	obsmetrics "github.com/batipilot/batipilot/internal/observability/metrics"
	obstracing "github.com/batipilot/batipilot/internal/observability/tracing"
	"github.com/batipilot/batipilot/internal/opportunity"
	opportunitydomain "github.com/batipilot/batipilot/internal/opportunity/domain"
	"github.com/batipilot/batipilot/internal/quote"
	quotedomain "github.com/batipilot/batipilot/internal/quote/domain"
	"github.com/batipilot/batipilot/internal/render"
	"github.com/batipilot/batipilot/internal/tiers"
	tiersdomain "github.com/batipilot/batipilot/internal/tiers/domain"
	"github.com/batipilot/batipilot/internal/worklib"
	worklibdomain "github.com/batipilot/batipilot/internal/worklib/domain"
)

var Module = fx.Module("http.server",
	config.Module,
	observability.Module,
	numbering.Module,
	auth.Module,
	tiers.Module,
	catalog.Module,
	worklib.Module,
	opportunity.Module,
	quote.Module,
	invoice.Module,
	equipment.Module,
	render.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	tokens         *token.Manager
	authSvc        authdomain.Service
	tiersSvc       tiersdomain.Service
	catalogSvc     catalogdomain.Service
	worklibSvc     worklibdomain.Service
	opportunitySvc opportunitydomain.Service
	quoteSvc       quotedomain.Service
	invoiceSvc     invoicedomain.Service
	equipmentSvc   equipmentdomain.Service
	renderSvc      render.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	Tokens         *token.Manager
	AuthSvc        authdomain.Service
	TiersSvc       tiersdomain.Service
	CatalogSvc     catalogdomain.Service
	WorklibSvc     worklibdomain.Service
	OpportunitySvc opportunitydomain.Service
	QuoteSvc       quotedomain.Service
	InvoiceSvc     invoicedomain.Service
	EquipmentSvc   equipmentdomain.Service
	RenderSvc      render.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		tokens:         p.Tokens,
		authSvc:        p.AuthSvc,
		tiersSvc:       p.TiersSvc,
		catalogSvc:     p.CatalogSvc,
		worklibSvc:     p.WorklibSvc,
		opportunitySvc: p.OpportunitySvc,
		quoteSvc:       p.QuoteSvc,
		invoiceSvc:     p.InvoiceSvc,
		equipmentSvc:   p.EquipmentSvc,
		renderSvc:      p.RenderSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
	auth.POST("/users", s.AuthRequired(), s.RequireRole(authdomain.RoleAdmin), s.CreateUser)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AuthRequired())

	// -------- Tiers --------
	api.GET("/tiers", s.ListTiers)
	api.POST("/tiers", s.CreateTiers)
	api.GET("/tiers/:id", s.GetTiersByID)
	api.PATCH("/tiers/:id", s.UpdateTiers)
	api.POST("/tiers/:id/archive", s.ArchiveTiers)
	api.POST("/tiers/:id/restore", s.RestoreTiers)

	api.GET("/tiers/:id/addresses", s.ListTiersAddresses)
	api.POST("/tiers/:id/addresses", s.AddTiersAddress)
	api.PATCH("/tiers/:id/addresses/:addressId", s.UpdateTiersAddress)
	api.DELETE("/tiers/:id/addresses/:addressId", s.DeleteTiersAddress)

	api.GET("/tiers/:id/contacts", s.ListTiersContacts)
	api.POST("/tiers/:id/contacts", s.AddTiersContact)
	api.PATCH("/tiers/:id/contacts/:contactId", s.UpdateTiersContact)
	api.DELETE("/tiers/:id/contacts/:contactId", s.DeleteTiersContact)

	api.GET("/tiers/:id/activities", s.ListTiersActivities)
	api.POST("/tiers/:id/activities", s.AddTiersActivity)

	// -------- Catalog --------
	api.GET("/catalog/categories", s.ListCatalogCategories)
	api.POST("/catalog/categories", s.CreateCatalogCategory)
	api.PATCH("/catalog/categories/:id", s.UpdateCatalogCategory)
	api.DELETE("/catalog/categories/:id", s.DeleteCatalogCategory)

	api.GET("/catalog/materials", s.ListMaterials)
	api.POST("/catalog/materials", s.CreateMaterial)
	api.GET("/catalog/materials/:id", s.GetMaterialByID)
	api.PATCH("/catalog/materials/:id", s.UpdateMaterial)
	api.DELETE("/catalog/materials/:id", s.DeleteMaterial)

	api.GET("/catalog/labor", s.ListLabor)
	api.POST("/catalog/labor", s.CreateLabor)
	api.GET("/catalog/labor/:id", s.GetLaborByID)
	api.PATCH("/catalog/labor/:id", s.UpdateLabor)
	api.DELETE("/catalog/labor/:id", s.DeleteLabor)

	// -------- Works --------
	api.GET("/works", s.ListWorks)
	api.POST("/works", s.CreateWork)
	api.GET("/works/:id", s.GetWorkByID)
	api.PATCH("/works/:id", s.UpdateWork)
	api.DELETE("/works/:id", s.DeleteWork)
	api.GET("/works/:id/cost", s.GetWorkCost)

	api.GET("/works/:id/ingredients", s.ListWorkIngredients)
	api.POST("/works/:id/ingredients", s.AddWorkIngredient)
	api.PATCH("/works/:id/ingredients/:ingredientId", s.UpdateWorkIngredient)
	api.DELETE("/works/:id/ingredients/:ingredientId", s.RemoveWorkIngredient)

	// -------- Opportunities --------
	api.GET("/opportunities", s.ListOpportunities)
	api.POST("/opportunities", s.CreateOpportunity)
	api.GET("/opportunities/pipeline", s.GetOpportunityPipeline)
	api.GET("/opportunities/stats", s.GetOpportunityStats)
	api.GET("/opportunities/:id", s.GetOpportunityByID)
	api.PATCH("/opportunities/:id", s.UpdateOpportunity)
	api.DELETE("/opportunities/:id", s.DeleteOpportunity)
	api.POST("/opportunities/:id/stage", s.ChangeOpportunityStage)
	api.POST("/opportunities/:id/generate-quote", s.GenerateQuoteFromOpportunity)

	// -------- Quotes --------
	api.GET("/quotes", s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/stats", s.GetQuoteStats)
	api.GET("/quotes/:id", s.GetQuoteByID)
	api.PATCH("/quotes/:id", s.UpdateQuote)
	api.DELETE("/quotes/:id", s.DeleteQuote)
	api.POST("/quotes/:id/send", s.SendQuote)
	api.POST("/quotes/:id/accept", s.AcceptQuote)
	api.POST("/quotes/:id/reject", s.RejectQuote)
	api.POST("/quotes/:id/cancel", s.CancelQuote)
	api.POST("/quotes/:id/duplicate", s.DuplicateQuote)
	api.GET("/quotes/:id/export", s.ExportQuote)

	api.GET("/quotes/:id/items", s.ListQuoteItems)
	api.POST("/quotes/:id/items", s.AddQuoteItem)
	api.PUT("/quotes/:id/items", s.ReplaceQuoteItems)
	api.POST("/quotes/:id/items/reorder", s.ReorderQuoteItems)
	api.PATCH("/quotes/:id/items/:itemId", s.UpdateQuoteItem)
	api.DELETE("/quotes/:id/items/:itemId", s.DeleteQuoteItem)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoiceFromQuote)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.DELETE("/invoices/:id", s.DeleteInvoice)
	api.POST("/invoices/:id/issue", s.IssueInvoice)
	api.POST("/invoices/:id/credit-note", s.CreateCreditNote)
	api.GET("/invoices/:id/export", s.ExportInvoice)

	api.GET("/invoices/:id/lines", s.ListInvoiceLines)
	api.POST("/invoices/:id/lines", s.AddInvoiceLine)
	api.PATCH("/invoices/:id/lines/:lineId", s.UpdateInvoiceLine)
	api.DELETE("/invoices/:id/lines/:lineId", s.DeleteInvoiceLine)

	api.GET("/invoices/:id/payments", s.ListInvoicePayments)
	api.POST("/invoices/:id/payments", s.RecordInvoicePayment)
	api.DELETE("/invoices/:id/payments/:paymentId", s.DeleteInvoicePayment)

	// -------- Equipment --------
	api.GET("/equipment/categories", s.ListEquipmentCategories)
	api.POST("/equipment/categories", s.CreateEquipmentCategory)
	api.PATCH("/equipment/categories/:id", s.UpdateEquipmentCategory)
	api.DELETE("/equipment/categories/:id", s.DeleteEquipmentCategory)

	api.GET("/equipment", s.ListEquipment)
	api.POST("/equipment", s.CreateEquipment)
	api.GET("/equipment/:id", s.GetEquipmentByID)
	api.PATCH("/equipment/:id", s.UpdateEquipment)
	api.DELETE("/equipment/:id", s.DeleteEquipment)

	api.GET("/equipment/:id/movements", s.ListEquipmentMovements)
	api.POST("/equipment/:id/movements", s.RecordEquipmentMovement)

	api.GET("/equipment/:id/reservations", s.ListEquipmentReservations)
	api.POST("/equipment/:id/reservations", s.ReserveEquipment)
	api.DELETE("/equipment/:id/reservations/:reservationId", s.CancelEquipmentReservation)
}
