package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/batipilot/batipilot/internal/clock"
	"github.com/batipilot/batipilot/internal/equipment/domain"
	pkgdb "github.com/batipilot/batipilot/pkg/db"
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

	categoryRepo    repository.Repository[domain.Category]
	equipmentRepo   repository.Repository[domain.Equipment]
	movementRepo    repository.Repository[domain.Movement]
	reservationRepo repository.Repository[domain.Reservation]
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("equipment.service"),
		genID: p.GenID,
		clock: p.Clock,

		categoryRepo:    repository.ProvideStore[domain.Category](p.DB),
		equipmentRepo:   repository.ProvideStore[domain.Equipment](p.DB),
		movementRepo:    repository.ProvideStore[domain.Movement](p.DB),
		reservationRepo: repository.ProvideStore[domain.Reservation](p.DB),
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func (s *Service) CreateCategory(ctx context.Context, req domain.UpsertCategoryRequest) (domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, domain.ErrInvalidName
	}

	now := s.clock.Now()
	category := domain.Category{
		ID:          s.genID.Generate(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categoryRepo.Create(ctx, &category); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Category{}, domain.ErrNameTaken
		}
		return domain.Category{}, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, req domain.UpsertCategoryRequest) (domain.Category, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Category{}, err
	}
	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return domain.Category{}, err
	}
	if category == nil {
		return domain.Category{}, domain.ErrNotFound
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		category.Name = name
	}
	category.Description = strings.TrimSpace(req.Description)
	category.UpdatedAt = s.clock.Now()

	if err := s.categoryRepo.Save(ctx, category); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Category{}, domain.ErrNameTaken
		}
		return domain.Category{}, err
	}
	return *category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return err
	}
	if category == nil {
		return domain.ErrNotFound
	}

	count, err := s.equipmentRepo.Count(ctx, &domain.Equipment{CategoryID: &id})
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrCategoryInUse
	}
	return s.categoryRepo.Delete(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.categoryRepo.Find(ctx, &domain.Category{}, option.WithOrder("name ASC"))
	if err != nil {
		return nil, err
	}
	categories := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, *row)
	}
	return categories, nil
}

func (s *Service) resolveCategoryID(ctx context.Context, raw string) (*snowflake.ID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := parseID(raw)
	if err != nil {
		return nil, domain.ErrInvalidCategory
	}
	category, err := s.categoryRepo.FindOne(ctx, &domain.Category{ID: id})
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrInvalidCategory
	}
	return &id, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateEquipmentRequest) (domain.Equipment, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Equipment{}, domain.ErrInvalidName
	}
	serial := strings.TrimSpace(req.SerialNumber)
	if serial == "" {
		return domain.Equipment{}, domain.ErrInvalidSerial
	}
	categoryID, err := s.resolveCategoryID(ctx, req.CategoryID)
	if err != nil {
		return domain.Equipment{}, err
	}

	now := s.clock.Now()
	equipment := domain.Equipment{
		ID:            s.genID.Generate(),
		Name:          name,
		SerialNumber:  serial,
		CategoryID:    categoryID,
		PurchaseDate:  req.PurchaseDate,
		PurchasePrice: req.PurchasePrice,
		Location:      strings.TrimSpace(req.Location),
		Available:     true,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.equipmentRepo.Create(ctx, &equipment); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return domain.Equipment{}, domain.ErrSerialTaken
		}
		return domain.Equipment{}, err
	}

	s.log.Info("equipment registered",
		zap.String("equipment_id", equipment.ID.String()),
		zap.String("serial", equipment.SerialNumber))

	return equipment, nil
}

func (s *Service) find(ctx context.Context, rawID string) (*domain.Equipment, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	equipment, err := s.equipmentRepo.FindOne(ctx, &domain.Equipment{ID: id})
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, domain.ErrNotFound
	}
	return equipment, nil
}

func (s *Service) Get(ctx context.Context, rawID string) (domain.Equipment, error) {
	equipment, err := s.find(ctx, rawID)
	if err != nil {
		return domain.Equipment{}, err
	}
	return *equipment, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateEquipmentRequest) (domain.Equipment, error) {
	equipment, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Equipment{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Equipment{}, domain.ErrInvalidName
		}
		equipment.Name = name
	}
	if req.CategoryID != nil {
		categoryID, err := s.resolveCategoryID(ctx, *req.CategoryID)
		if err != nil {
			return domain.Equipment{}, err
		}
		equipment.CategoryID = categoryID
	}
	if req.PurchaseDate != nil {
		equipment.PurchaseDate = req.PurchaseDate
	}
	if req.PurchasePrice != nil {
		equipment.PurchasePrice = req.PurchasePrice
	}
	if req.Available != nil {
		equipment.Available = *req.Available
	}
	if req.Notes != nil {
		equipment.Notes = strings.TrimSpace(*req.Notes)
	}

	equipment.UpdatedAt = s.clock.Now()
	if err := s.equipmentRepo.Save(ctx, equipment); err != nil {
		return domain.Equipment{}, err
	}
	return *equipment, nil
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	equipment, err := s.find(ctx, rawID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.movementRepo.WithTrx(tx).DeleteWhere(ctx, &domain.Movement{EquipmentID: equipment.ID}); err != nil {
			return err
		}
		if err := s.reservationRepo.WithTrx(tx).DeleteWhere(ctx, &domain.Reservation{EquipmentID: equipment.ID}); err != nil {
			return err
		}
		return s.equipmentRepo.WithTrx(tx).Delete(ctx, equipment.ID)
	})
}

func (s *Service) List(ctx context.Context, req domain.ListEquipmentRequest) (domain.ListEquipmentResponse, error) {
	opts := []option.QueryOption{
		option.WithOrder("created_at DESC, id DESC"),
		option.ApplyPagination(req.Pagination),
	}
	if req.Search != "" {
		opts = append(opts, option.WithSearch(req.Search, "name", "serial_number"))
	}
	if req.Available != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "available", Operator: option.EQ, Value: *req.Available,
		}))
	}
	filter := &domain.Equipment{}
	if raw := strings.TrimSpace(req.CategoryID); raw != "" {
		categoryID, err := parseID(raw)
		if err != nil {
			return domain.ListEquipmentResponse{}, domain.ErrInvalidCategory
		}
		filter.CategoryID = &categoryID
	}

	rows, err := s.equipmentRepo.Find(ctx, filter, opts...)
	if err != nil {
		return domain.ListEquipmentResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	pageInfo := pagination.BuildCursorPageInfo(rows, pageSize, func(e *domain.Equipment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(rows) > pageSize {
		rows = rows[:pageSize]
	}

	equipment := make([]domain.Equipment, 0, len(rows))
	for _, row := range rows {
		equipment = append(equipment, *row)
	}

	resp := domain.ListEquipmentResponse{Equipment: equipment}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// RecordMovement relocates equipment and keeps its current location in sync
// with the movement log. A movement carrying a reservation ID fulfills that
// reservation in the same transaction.
func (s *Service) RecordMovement(ctx context.Context, req domain.RecordMovementRequest) (domain.Movement, error) {
	equipment, err := s.find(ctx, req.EquipmentID)
	if err != nil {
		return domain.Movement{}, err
	}
	toLocation := strings.TrimSpace(req.ToLocation)
	if toLocation == "" {
		return domain.Movement{}, domain.ErrInvalidLocation
	}

	now := s.clock.Now()
	movedAt := now
	if req.MovedAt != nil && !req.MovedAt.IsZero() {
		movedAt = *req.MovedAt
	}

	movement := domain.Movement{
		ID:           s.genID.Generate(),
		EquipmentID:  equipment.ID,
		FromLocation: equipment.Location,
		ToLocation:   toLocation,
		MovedAt:      movedAt,
		EndDate:      req.EndDate,
		Note:         strings.TrimSpace(req.Note),
		CreatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if raw := strings.TrimSpace(req.ReservationID); raw != "" {
			reservationID, err := parseID(raw)
			if err != nil {
				return domain.ErrReservationNotFound
			}
			reservation, err := s.reservationRepo.WithTrx(tx).FindOne(ctx,
				&domain.Reservation{ID: reservationID, EquipmentID: equipment.ID})
			if err != nil {
				return err
			}
			if reservation == nil {
				return domain.ErrReservationNotFound
			}
			if !reservation.Status.Active() {
				return domain.ErrNotReserved
			}
			movement.ReservationID = &reservation.ID
			if err := s.reservationRepo.WithTrx(tx).Update(ctx, reservation.ID, map[string]any{
				"status":                domain.ReservationFulfilled,
				"fulfilled_movement_id": movement.ID,
				"updated_at":            now,
			}); err != nil {
				return err
			}
		}

		if err := s.movementRepo.WithTrx(tx).Create(ctx, &movement); err != nil {
			return err
		}
		return s.equipmentRepo.WithTrx(tx).Update(ctx, equipment.ID, map[string]any{
			"location":   toLocation,
			"updated_at": now,
		})
	})
	if err != nil {
		return domain.Movement{}, err
	}

	s.log.Info("equipment moved",
		zap.String("equipment_id", equipment.ID.String()),
		zap.String("to", toLocation))

	return movement, nil
}

func (s *Service) ListMovements(ctx context.Context, equipmentID string) ([]domain.Movement, error) {
	equipment, err := s.find(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.movementRepo.Find(ctx, &domain.Movement{EquipmentID: equipment.ID},
		option.WithOrder("moved_at DESC, id DESC"))
	if err != nil {
		return nil, err
	}
	movements := make([]domain.Movement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, *row)
	}
	return movements, nil
}

// Reserve books a window for a piece of equipment. Windows of active
// reservations must not overlap.
func (s *Service) Reserve(ctx context.Context, req domain.CreateReservationRequest) (domain.Reservation, error) {
	equipment, err := s.find(ctx, req.EquipmentID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || !req.StartDate.Before(req.EndDate) {
		return domain.Reservation{}, domain.ErrInvalidWindow
	}
	site := strings.TrimSpace(req.Site)
	if site == "" {
		return domain.Reservation{}, domain.ErrInvalidLocation
	}

	now := s.clock.Now()
	reservation := domain.Reservation{
		ID:          s.genID.Generate(),
		EquipmentID: equipment.ID,
		Site:        site,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      domain.ReservationReserved,
		Note:        strings.TrimSpace(req.Note),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.reservationRepo.WithTrx(tx).Find(ctx, &domain.Reservation{
			EquipmentID: equipment.ID,
			Status:      domain.ReservationReserved,
		})
		if err != nil {
			return err
		}
		for _, existing := range active {
			if existing.Overlaps(req.StartDate, req.EndDate) {
				return domain.ErrOverlapping
			}
		}
		if err := s.reservationRepo.WithTrx(tx).Create(ctx, &reservation); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrOverlapping
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return reservation, nil
}

func (s *Service) CancelReservation(ctx context.Context, equipmentID, reservationID string) error {
	equipment, err := s.find(ctx, equipmentID)
	if err != nil {
		return err
	}
	id, err := parseID(reservationID)
	if err != nil {
		return err
	}
	reservation, err := s.reservationRepo.FindOne(ctx,
		&domain.Reservation{ID: id, EquipmentID: equipment.ID})
	if err != nil {
		return err
	}
	if reservation == nil {
		return domain.ErrReservationNotFound
	}
	if !reservation.Status.Active() {
		return domain.ErrNotReserved
	}
	return s.reservationRepo.Update(ctx, reservation.ID, map[string]any{
		"status":     domain.ReservationCancelled,
		"updated_at": s.clock.Now(),
	})
}

func (s *Service) ListReservations(ctx context.Context, req domain.ListReservationsRequest) ([]domain.Reservation, error) {
	equipment, err := s.find(ctx, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	filter := &domain.Reservation{EquipmentID: equipment.ID}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !domain.ReservationStatus(status).Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = domain.ReservationStatus(status)
	}
	rows, err := s.reservationRepo.Find(ctx, filter, option.WithOrder("start_date ASC, id ASC"))
	if err != nil {
		return nil, err
	}
	reservations := make([]domain.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, *row)
	}
	return reservations, nil
}

func (s *Service) ExpireReservations(ctx context.Context) (int, error) {
	now := s.clock.Now()
	res := s.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("status = ? AND end_date < ?", domain.ReservationReserved, now).
		Updates(map[string]any{
			"status":     domain.ReservationExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info("reservations expired", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}
