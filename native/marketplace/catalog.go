package marketplace

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleLength       = 256
	maxDescriptionLength = 8192
	maxAmountBits        = 256
)

func normalizeText(field, value string, limit int) (string, error) {
	cleaned := norm.NFC.String(strings.TrimSpace(value))
	if cleaned == "" {
		return "", fmt.Errorf("%w: %s required", ErrInvalidInput, field)
	}
	if !utf8.ValidString(cleaned) {
		return "", fmt.Errorf("%w: %s must be valid UTF-8", ErrInvalidInput, field)
	}
	if len(cleaned) > limit {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, field, limit)
	}
	return cleaned, nil
}

func validatePrice(price *big.Int) error {
	if price == nil || price.Sign() < 0 {
		return fmt.Errorf("%w: price must be non-negative", ErrInvalidPrice)
	}
	if price.BitLen() > maxAmountBits {
		return fmt.Errorf("%w: price exceeds %d bits", ErrInvalidPrice, maxAmountBits)
	}
	return nil
}

func (s *session) loadGig(id uint64) (*Gig, error) {
	gig, ok, err := s.tx.GigGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || gig == nil {
		return nil, fmt.Errorf("%w: gig %d", ErrNotFound, id)
	}
	return gig.Clone(), nil
}

// CreateGig lists a new gig owned by caller and returns its identifier.
// Identifiers start at 1 and are never reused.
func (e *Engine) CreateGig(ctx context.Context, caller [20]byte, title, description string, price *big.Int, asset string) (uint64, error) {
	var id uint64
	err := e.mutate(ctx, "create_gig", guarded, func(s *session) error {
		cleanTitle, err := normalizeText("title", title, maxTitleLength)
		if err != nil {
			return err
		}
		cleanDescription, err := normalizeText("description", description, maxDescriptionLength)
		if err != nil {
			return err
		}
		if err := validatePrice(price); err != nil {
			return err
		}
		normalizedAsset, err := NormalizeAsset(asset)
		if err != nil {
			return err
		}
		s.root.GigSeq++
		s.touchRoot()
		gig := &Gig{
			ID:          s.root.GigSeq,
			Provider:    caller,
			Title:       cleanTitle,
			Description: cleanDescription,
			Price:       new(big.Int).Set(price),
			Asset:       normalizedAsset,
			IsActive:    true,
			CreatedAt:   e.now(),
		}
		if err := s.tx.GigPut(gig); err != nil {
			return err
		}
		id = gig.ID
		s.emit(newGigCreatedEvent(gig))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeactivateGig stops new orders against the gig. Orders already opened are
// unaffected. Only the gig's provider may deactivate it.
func (e *Engine) DeactivateGig(ctx context.Context, caller [20]byte, gigID uint64) error {
	return e.mutate(ctx, "deactivate_gig", guarded, func(s *session) error {
		gig, err := s.loadGig(gigID)
		if err != nil {
			return err
		}
		if gig.Provider != caller {
			return fmt.Errorf("%w: only gig provider can deactivate gig %d", ErrUnauthorized, gigID)
		}
		if !gig.IsActive {
			return nil
		}
		gig.IsActive = false
		if err := s.tx.GigPut(gig); err != nil {
			return err
		}
		s.emit(newGigDeactivatedEvent(gig))
		return nil
	})
}

// GetGig returns a copy of the gig.
func (e *Engine) GetGig(gigID uint64) (*Gig, error) {
	var out *Gig
	err := e.view(func(st State) error {
		gig, ok, err := st.GigGet(gigID)
		if err != nil {
			return err
		}
		if !ok || gig == nil {
			return fmt.Errorf("%w: gig %d", ErrNotFound, gigID)
		}
		out = gig.Clone()
		return nil
	})
	return out, err
}
