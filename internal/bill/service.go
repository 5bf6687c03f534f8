package bill

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tabsplit/tabsplit/internal/scanning"
	"github.com/tabsplit/tabsplit/internal/splitting"
	"github.com/tabsplit/tabsplit/internal/textparse"
)

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles bill operations
type Service struct {
	db          DB
	extractor   scanning.Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor scanning.Extractor, storage Storage) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor scanning.Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Phone cameras generate very long names; keep them short
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ScanBill uploads a receipt image, extracts its items, and saves a new
// bill. Every extracted item starts with an even split across all
// participants; the owner refines rules afterward with UpdateBill.
func (s *Service) ScanBill(filename string, data []byte, contentType string, participants []string) (*Bill, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("at least one participant is required")
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	receiptData, err := s.extractor.ExtractReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to extract receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the saved image since extraction failed
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("extracting receipt: %w", err)
	}

	date, err := time.Parse("2006-01-02", receiptData.Date)
	if err != nil {
		date = now
	}

	items := make([]Item, 0, len(receiptData.Items))
	parsedItems := make([]textparse.Item, 0, len(receiptData.Items))
	for _, li := range receiptData.Items {
		price := toCents(li.Price)
		items = append(items, Item{
			Name:  li.Name,
			Price: price,
			Split: splitting.Rule{Kind: splitting.Equal},
		})
		parsedItems = append(parsedItems, textparse.Item{Name: li.Name, Price: price})
	}

	totals := textparse.Totals{Tax: toCents(receiptData.Tax)}
	if receiptData.Subtotal != nil {
		totals.Subtotal = toCents(*receiptData.Subtotal)
		totals.SubtotalFound = true
	}
	if receiptData.Total != nil {
		totals.Total = toCents(*receiptData.Total)
		totals.TotalFound = true
	}
	reconciled := textparse.Reconcile(parsedItems, totals)

	bill := &Bill{
		ID:               id,
		StoreName:        receiptData.StoreName,
		Date:             date,
		Participants:     participants,
		Items:            items,
		Subtotal:         reconciled.Subtotal,
		Tax:              reconciled.Tax,
		Total:            reconciled.Total,
		SubtotalMismatch: reconciled.SubtotalMismatch,
		TotalMismatch:    reconciled.TotalMismatch,
		ImagePath:        savedPath,
		ContentType:      contentType,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.SaveBill(bill); err != nil {
		// Clean up image if database save fails
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return bill, nil
}

// toCents converts a dollar amount to whole cents.
func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns all bills
func (s *Service) ListBills() ([]*Bill, error) {
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// UpdateBill replaces a bill's editable fields: store name, date,
// participants, items, and split rules. Identity, image, and creation
// time are preserved from the stored bill. Totals are re-reconciled
// against the edited items so the mismatch flags stay honest.
func (s *Service) UpdateBill(id string, update *UpdateRequest) (*Bill, error) {
	stored, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill for update: %w", err)
	}

	if err := validateUpdate(update); err != nil {
		return nil, fmt.Errorf("validating bill: %w", err)
	}

	stored.StoreName = update.StoreName
	if !update.Date.IsZero() {
		stored.Date = update.Date
	}
	stored.Participants = update.Participants
	stored.Items = update.Items
	stored.Tax = update.Tax

	parsedItems := make([]textparse.Item, 0, len(stored.Items))
	for _, item := range stored.Items {
		parsedItems = append(parsedItems, textparse.Item{Name: item.Name, Price: item.Price})
	}
	totals := textparse.Totals{Tax: stored.Tax}
	if update.Subtotal != nil {
		totals.Subtotal = *update.Subtotal
		totals.SubtotalFound = true
	}
	if update.Total != nil {
		totals.Total = *update.Total
		totals.TotalFound = true
	}
	reconciled := textparse.Reconcile(parsedItems, totals)
	stored.Subtotal = reconciled.Subtotal
	stored.Total = reconciled.Total
	stored.SubtotalMismatch = reconciled.SubtotalMismatch
	stored.TotalMismatch = reconciled.TotalMismatch

	stored.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(stored); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return stored, nil
}

// validateUpdate checks the editable fields of a bill before saving.
func validateUpdate(b *UpdateRequest) error {
	if len(b.Participants) == 0 {
		return fmt.Errorf("at least one participant is required")
	}
	known := make(map[string]bool, len(b.Participants))
	for _, p := range b.Participants {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("participant names must not be empty")
		}
		if known[p] {
			return fmt.Errorf("duplicate participant: %s", p)
		}
		known[p] = true
	}

	for _, item := range b.Items {
		if item.Price < 0 {
			return fmt.Errorf("item %q has a negative price", item.Name)
		}
		if err := validateRule(item, known); err != nil {
			return err
		}
	}
	return nil
}

// validateRule rejects rules that reference unknown participants or
// fixed shares that exceed the item price. A fixed shortfall is fine
// (the engine spreads it evenly); an oversubscription would force a
// negative share on someone, so it is an edit error.
func validateRule(item Item, known map[string]bool) error {
	rule := item.Split
	switch rule.Kind {
	case splitting.Equal, "":
		for _, id := range rule.Participants {
			if !known[id] {
				return fmt.Errorf("item %q assigns unknown participant %s", item.Name, id)
			}
		}
	case splitting.Percent:
		for _, share := range rule.Shares {
			if !known[share.ParticipantID] {
				return fmt.Errorf("item %q assigns unknown participant %s", item.Name, share.ParticipantID)
			}
			if share.Percent < 0 {
				return fmt.Errorf("item %q has a negative percentage share", item.Name)
			}
		}
	case splitting.Fixed:
		var declared int64
		for _, share := range rule.Shares {
			if !known[share.ParticipantID] {
				return fmt.Errorf("item %q assigns unknown participant %s", item.Name, share.ParticipantID)
			}
			if share.Amount < 0 {
				return fmt.Errorf("item %q has a negative fixed share", item.Name)
			}
			declared += share.Amount
		}
		if declared > item.Price {
			return fmt.Errorf("item %q has fixed shares totaling %d, more than its price %d", item.Name, declared, item.Price)
		}
	default:
		return fmt.Errorf("item %q has unknown split kind %q", item.Name, rule.Kind)
	}
	return nil
}

// DeleteBill removes a bill and its image
func (s *Service) DeleteBill(id string) error {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if err := s.storage.Delete(bill.ImagePath); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete image", "path", bill.ImagePath, "error", err)
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

// GetBillImage retrieves the stored receipt image for a bill
func (s *Service) GetBillImage(id string) ([]byte, string, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}

	data, err := s.storage.Get(bill.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill image: %w", err)
	}

	return data, bill.ContentType, nil
}

// Summary computes who owes what for a bill. The per-participant
// amounts always sum to the bill's items plus tax, to the cent.
func (s *Service) Summary(id string) (*splitting.Summary, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	summary := splitting.ComputeSummary(bill.SplitItems(), bill.Participants, bill.Tax)
	return &summary, nil
}
