package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/git-masi/memestock-backend/internal/ledger"
	"github.com/git-masi/memestock-backend/internal/model"
	"github.com/git-masi/memestock-backend/internal/store"
)

// CreateCompanyRequest is the payload for listing a new company.
type CreateCompanyRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=64"`
	Symbol        string `json:"tickerSymbol" validate:"required,alpha,uppercase,min=1,max=6"`
	Description   string `json:"description" validate:"max=280"`
	PricePerShare int64  `json:"pricePerShare" validate:"required,gt=0"`
}

// CreateCompany lists a company with its initial share price. Both the
// name and the ticker symbol are claimed via guard items in the same
// batch, so either duplicate rejects the whole write.
func (s *Service) CreateCompany(ctx context.Context, req CreateCompanyRequest) (*model.Company, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c := &model.Company{
		Symbol:                req.Symbol,
		Name:                  req.Name,
		Description:           req.Description,
		CurrentPricePerShare:  req.PricePerShare,
		PreviousPricePerShare: req.PricePerShare,
		Created:               time.Now().UTC(),
	}

	err := s.ledger.Store().Apply(ctx,
		ledger.PutCompany(c, store.IfNotExists()),
		ledger.Guard(ledger.PKCompanyName, req.Name),
		ledger.Guard(ledger.PKTicker, req.Symbol),
	)
	if err != nil {
		return nil, Translate(err)
	}
	return c, nil
}

// GetCompany returns a company by ticker symbol.
func (s *Service) GetCompany(ctx context.Context, symbol string) (*model.Company, error) {
	c, err := s.ledger.GetCompany(ctx, symbol)
	if err != nil {
		return nil, Translate(err)
	}
	return c, nil
}

// ListCompanies returns all listed companies ordered by symbol.
func (s *Service) ListCompanies(ctx context.Context) ([]model.Company, error) {
	return s.ledger.ListCompanies(ctx)
}
