package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/tiers/domain"
	"github.com/batipilot/batipilot/internal/userctx"
	"github.com/batipilot/batipilot/pkg/db/option"
	"github.com/batipilot/batipilot/pkg/db/pagination"
	"github.com/batipilot/batipilot/pkg/repository"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	tiersRepo    repository.Repository[domain.Tiers]
	addressRepo  repository.Repository[domain.Address]
	contactRepo  repository.Repository[domain.Contact]
	activityRepo repository.Repository[domain.Activity]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tiers.service"),
		genID: p.GenID,
		clock: p.Clock,

		tiersRepo:    repository.ProvideStore[domain.Tiers](p.DB),
		addressRepo:  repository.ProvideStore[domain.Address](p.DB),
		contactRepo:  repository.ProvideStore[domain.Contact](p.DB),
		activityRepo: repository.ProvideStore[domain.Activity](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func validateFlags(flags []string) error {
	for _, flag := range flags {
		if !domain.ValidFlag(flag) {
			return domain.ErrInvalidFlag
		}
	}
	return nil
}

// find loads a tiers record, archived or not.
func (s *Service) find(ctx context.Context, rawID string) (*domain.Tiers, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	tiers, err := s.tiersRepo.FindOne(ctx, &domain.Tiers{ID: id})
	if err != nil {
		return nil, err
	}
	if tiers == nil {
		return nil, domain.ErrNotFound
	}
	return tiers, nil
}

// findLive rejects archived records; sub-resource writes go through it.
func (s *Service) findLive(ctx context.Context, rawID string) (*domain.Tiers, error) {
	tiers, err := s.find(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if tiers.Archived {
		return nil, domain.ErrArchived
	}
	return tiers, nil
}

func (s *Service) journal(ctx context.Context, tx *gorm.DB, tiersID snowflake.ID, kind domain.ActivityKind, content string) error {
	var userID *snowflake.ID
	if id, ok := userctx.UserIDFromContext(ctx); ok {
		userID = &id
	}
	activity := domain.Activity{
		ID:        s.genID.Generate(),
		TiersID:   tiersID,
		Kind:      kind,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	return s.activityRepo.WithTrx(tx).Create(ctx, &activity)
}

func (s *Service) Create(ctx context.Context, req domain.CreateTiersRequest) (domain.Tiers, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tiers{}, domain.ErrInvalidName
	}
	kind := req.Kind
	if kind == "" {
		kind = domain.KindCompany
	}
	if !kind.Valid() {
		return domain.Tiers{}, domain.ErrInvalidKind
	}
	if err := validateFlags(req.Flags); err != nil {
		return domain.Tiers{}, err
	}
	flags := req.Flags
	if flags == nil {
		flags = []string{}
	}

	now := s.clock.Now()
	tiers := domain.Tiers{
		ID:        s.genID.Generate(),
		Kind:      kind,
		Name:      name,
		SIRET:     strings.TrimSpace(req.SIRET),
		VATNumber: strings.TrimSpace(req.VATNumber),
		Flags:     datatypes.NewJSONSlice(flags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tiersRepo.WithTrx(tx).Create(ctx, &tiers); err != nil {
			return err
		}
		return s.journal(ctx, tx, tiers.ID, domain.ActivityCreation, "fiche creee")
	})
	if err != nil {
		return domain.Tiers{}, err
	}
	return tiers, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Tiers, error) {
	tiers, err := s.find(ctx, id)
	if err != nil {
		return domain.Tiers{}, err
	}
	return *tiers, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTiersRequest) (domain.Tiers, error) {
	tiers, err := s.findLive(ctx, req.ID)
	if err != nil {
		return domain.Tiers{}, err
	}

	if req.Kind != nil {
		if !req.Kind.Valid() {
			return domain.Tiers{}, domain.ErrInvalidKind
		}
		tiers.Kind = *req.Kind
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Tiers{}, domain.ErrInvalidName
		}
		tiers.Name = name
	}
	if req.SIRET != nil {
		tiers.SIRET = strings.TrimSpace(*req.SIRET)
	}
	if req.VATNumber != nil {
		tiers.VATNumber = strings.TrimSpace(*req.VATNumber)
	}
	if req.Flags != nil {
		if err := validateFlags(*req.Flags); err != nil {
			return domain.Tiers{}, err
		}
		tiers.Flags = datatypes.NewJSONSlice(*req.Flags)
	}

	tiers.UpdatedAt = s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tiersRepo.WithTrx(tx).Save(ctx, tiers); err != nil {
			return err
		}
		return s.journal(ctx, tx, tiers.ID, domain.ActivityModification, "fiche modifiee")
	})
	if err != nil {
		return domain.Tiers{}, err
	}
	return *tiers, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTiersRequest) (domain.ListTiersResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name", "siret"))
	}
	if !req.IncludeArchived {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "archived", Operator: option.EQ, Value: false,
		}))
	}
	if kind := strings.TrimSpace(req.Kind); kind != "" {
		if !domain.TiersKind(kind).Valid() {
			return domain.ListTiersResponse{}, domain.ErrInvalidKind
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "kind", Operator: option.EQ, Value: kind,
		}))
	}
	if flag := strings.TrimSpace(req.Flag); flag != "" {
		if !domain.ValidFlag(flag) {
			return domain.ListTiersResponse{}, domain.ErrInvalidFlag
		}
		// Flags are stored as a JSON array; a LIKE on the quoted value is
		// portable across the supported dialects.
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "flags", Operator: option.LIKE, Value: `%"` + flag + `"%`,
		}))
	}

	items, err := s.tiersRepo.Find(ctx, &domain.Tiers{}, opts...)
	if err != nil {
		return domain.ListTiersResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(tr *domain.Tiers) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        tr.ID.String(),
			CreatedAt: tr.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	records := make([]domain.Tiers, 0, len(items))
	for _, item := range items {
		records = append(records, *item)
	}

	resp := domain.ListTiersResponse{Tiers: records}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Archive(ctx context.Context, id string) error {
	tiers, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if tiers.Archived {
		return domain.ErrArchived
	}

	now := s.clock.Now()
	return s.tiersRepo.Update(ctx, tiers.ID, map[string]any{
		"archived":    true,
		"archived_at": now,
		"updated_at":  now,
	})
}

func (s *Service) Restore(ctx context.Context, id string) error {
	tiers, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !tiers.Archived {
		return domain.ErrNotArchived
	}

	return s.tiersRepo.Update(ctx, tiers.ID, map[string]any{
		"archived":    false,
		"archived_at": nil,
		"updated_at":  s.clock.Now(),
	})
}

func (s *Service) AddAddress(ctx context.Context, req domain.UpsertAddressRequest) (domain.Address, error) {
	tiers, err := s.findLive(ctx, req.TiersID)
	if err != nil {
		return domain.Address{}, err
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = "France"
	}

	now := s.clock.Now()
	address := domain.Address{
		ID:         s.genID.Generate(),
		TiersID:    tiers.ID,
		Label:      strings.TrimSpace(req.Label),
		Street:     strings.TrimSpace(req.Street),
		City:       strings.TrimSpace(req.City),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Country:    country,
		Billing:    req.Billing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if address.Billing {
			if err := s.clearBillingAddress(ctx, tx, tiers.ID, 0); err != nil {
				return err
			}
		}
		return s.addressRepo.WithTrx(tx).Create(ctx, &address)
	})
	if err != nil {
		return domain.Address{}, err
	}
	return address, nil
}

func (s *Service) UpdateAddress(ctx context.Context, req domain.UpsertAddressRequest) (domain.Address, error) {
	tiers, err := s.findLive(ctx, req.TiersID)
	if err != nil {
		return domain.Address{}, err
	}
	addressID, err := parseID(req.AddressID)
	if err != nil {
		return domain.Address{}, err
	}

	address, err := s.addressRepo.FindOne(ctx, &domain.Address{ID: addressID, TiersID: tiers.ID})
	if err != nil {
		return domain.Address{}, err
	}
	if address == nil {
		return domain.Address{}, domain.ErrNotFound
	}

	address.Label = strings.TrimSpace(req.Label)
	address.Street = strings.TrimSpace(req.Street)
	address.City = strings.TrimSpace(req.City)
	address.PostalCode = strings.TrimSpace(req.PostalCode)
	if country := strings.TrimSpace(req.Country); country != "" {
		address.Country = country
	}
	address.Billing = req.Billing
	address.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if address.Billing {
			if err := s.clearBillingAddress(ctx, tx, tiers.ID, address.ID); err != nil {
				return err
			}
		}
		return s.addressRepo.WithTrx(tx).Save(ctx, address)
	})
	if err != nil {
		return domain.Address{}, err
	}
	return *address, nil
}

// clearBillingAddress drops the billing flag from every other address of the
// tiers so exactly one billing address remains after the write.
func (s *Service) clearBillingAddress(ctx context.Context, tx *gorm.DB, tiersID, keep snowflake.ID) error {
	stmt := tx.WithContext(ctx).
		Model(&domain.Address{}).
		Where("tiers_id = ? AND billing = ?", tiersID, true)
	if keep != 0 {
		stmt = stmt.Where("id <> ?", keep)
	}
	return stmt.Update("billing", false).Error
}

func (s *Service) DeleteAddress(ctx context.Context, tiersID, addressID string) error {
	tiers, err := s.findLive(ctx, tiersID)
	if err != nil {
		return err
	}
	id, err := parseID(addressID)
	if err != nil {
		return err
	}

	address, err := s.addressRepo.FindOne(ctx, &domain.Address{ID: id, TiersID: tiers.ID})
	if err != nil {
		return err
	}
	if address == nil {
		return domain.ErrNotFound
	}
	return s.addressRepo.Delete(ctx, id)
}

func (s *Service) ListAddresses(ctx context.Context, tiersID string) ([]domain.Address, error) {
	tiers, err := s.find(ctx, tiersID)
	if err != nil {
		return nil, err
	}
	items, err := s.addressRepo.Find(ctx, &domain.Address{TiersID: tiers.ID},
		option.WithOrder("billing DESC, label ASC"))
	if err != nil {
		return nil, err
	}
	addresses := make([]domain.Address, 0, len(items))
	for _, item := range items {
		addresses = append(addresses, *item)
	}
	return addresses, nil
}

func (s *Service) AddContact(ctx context.Context, req domain.UpsertContactRequest) (domain.Contact, error) {
	tiers, err := s.findLive(ctx, req.TiersID)
	if err != nil {
		return domain.Contact{}, err
	}

	now := s.clock.Now()
	contact := domain.Contact{
		ID:             s.genID.Generate(),
		TiersID:        tiers.ID,
		LastName:       strings.TrimSpace(req.LastName),
		FirstName:      strings.TrimSpace(req.FirstName),
		Role:           strings.TrimSpace(req.Role),
		Email:          strings.TrimSpace(req.Email),
		Phone:          strings.TrimSpace(req.Phone),
		PrimaryQuote:   req.PrimaryQuote,
		PrimaryInvoice: req.PrimaryInvoice,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.clearPrimaryContacts(ctx, tx, tiers.ID, 0, contact.PrimaryQuote, contact.PrimaryInvoice); err != nil {
			return err
		}
		return s.contactRepo.WithTrx(tx).Create(ctx, &contact)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return contact, nil
}

func (s *Service) UpdateContact(ctx context.Context, req domain.UpsertContactRequest) (domain.Contact, error) {
	tiers, err := s.findLive(ctx, req.TiersID)
	if err != nil {
		return domain.Contact{}, err
	}
	contactID, err := parseID(req.ContactID)
	if err != nil {
		return domain.Contact{}, err
	}

	contact, err := s.contactRepo.FindOne(ctx, &domain.Contact{ID: contactID, TiersID: tiers.ID})
	if err != nil {
		return domain.Contact{}, err
	}
	if contact == nil {
		return domain.Contact{}, domain.ErrNotFound
	}

	contact.LastName = strings.TrimSpace(req.LastName)
	contact.FirstName = strings.TrimSpace(req.FirstName)
	contact.Role = strings.TrimSpace(req.Role)
	contact.Email = strings.TrimSpace(req.Email)
	contact.Phone = strings.TrimSpace(req.Phone)
	contact.PrimaryQuote = req.PrimaryQuote
	contact.PrimaryInvoice = req.PrimaryInvoice
	contact.UpdatedAt = s.clock.Now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.clearPrimaryContacts(ctx, tx, tiers.ID, contact.ID, contact.PrimaryQuote, contact.PrimaryInvoice); err != nil {
			return err
		}
		return s.contactRepo.WithTrx(tx).Save(ctx, contact)
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return *contact, nil
}

func (s *Service) clearPrimaryContacts(ctx context.Context, tx *gorm.DB, tiersID, keep snowflake.ID, quote, invoice bool) error {
	if quote {
		stmt := tx.WithContext(ctx).
			Model(&domain.Contact{}).
			Where("tiers_id = ? AND primary_quote = ?", tiersID, true)
		if keep != 0 {
			stmt = stmt.Where("id <> ?", keep)
		}
		if err := stmt.Update("primary_quote", false).Error; err != nil {
			return err
		}
	}
	if invoice {
		stmt := tx.WithContext(ctx).
			Model(&domain.Contact{}).
			Where("tiers_id = ? AND primary_invoice = ?", tiersID, true)
		if keep != 0 {
			stmt = stmt.Where("id <> ?", keep)
		}
		if err := stmt.Update("primary_invoice", false).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) DeleteContact(ctx context.Context, tiersID, contactID string) error {
	tiers, err := s.findLive(ctx, tiersID)
	if err != nil {
		return err
	}
	id, err := parseID(contactID)
	if err != nil {
		return err
	}

	contact, err := s.contactRepo.FindOne(ctx, &domain.Contact{ID: id, TiersID: tiers.ID})
	if err != nil {
		return err
	}
	if contact == nil {
		return domain.ErrNotFound
	}
	return s.contactRepo.Delete(ctx, id)
}

func (s *Service) ListContacts(ctx context.Context, tiersID string) ([]domain.Contact, error) {
	tiers, err := s.find(ctx, tiersID)
	if err != nil {
		return nil, err
	}
	items, err := s.contactRepo.Find(ctx, &domain.Contact{TiersID: tiers.ID},
		option.WithOrder("last_name ASC, first_name ASC"))
	if err != nil {
		return nil, err
	}
	contacts := make([]domain.Contact, 0, len(items))
	for _, item := range items {
		contacts = append(contacts, *item)
	}
	return contacts, nil
}

func (s *Service) AddActivity(ctx context.Context, req domain.AddActivityRequest) (domain.Activity, error) {
	tiers, err := s.findLive(ctx, req.TiersID)
	if err != nil {
		return domain.Activity{}, err
	}
	if !req.Kind.Valid() {
		return domain.Activity{}, domain.ErrInvalidActivity
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.Activity{}, domain.ErrInvalidActivity
	}

	var userID *snowflake.ID
	if id, ok := userctx.UserIDFromContext(ctx); ok {
		userID = &id
	}

	activity := domain.Activity{
		ID:        s.genID.Generate(),
		TiersID:   tiers.ID,
		Kind:      req.Kind,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.activityRepo.Create(ctx, &activity); err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

func (s *Service) ListActivities(ctx context.Context, tiersID string) ([]domain.Activity, error) {
	tiers, err := s.find(ctx, tiersID)
	if err != nil {
		return nil, err
	}
	items, err := s.activityRepo.Find(ctx, &domain.Activity{TiersID: tiers.ID},
		option.WithOrder("created_at DESC, id DESC"))
	if err != nil {
		return nil, err
	}
	activities := make([]domain.Activity, 0, len(items))
	for _, item := range items {
		activities = append(activities, *item)
	}
	return activities, nil
}
