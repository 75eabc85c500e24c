// Package account provides read-only HTTP handlers for the authenticated
// account: balance and transfer history.
package account

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/p2pwallet/wallet/pkg/config"
	"github.com/p2pwallet/wallet/pkg/middleware"
	transfersvc "github.com/p2pwallet/wallet/pkg/service/transfer"
	"github.com/p2pwallet/wallet/webapi/common"
)

// Routes registers the account read endpoints.
//
//   - GET /account/balance      : current balance of the authenticated account.
//   - GET /account/transactions : transfer history, oldest first.
func Routes(app *fiber.App, svc *transfersvc.Service, cfg *config.AppConfig) {
	app.Get("/account/balance", middleware.JwtProtected(cfg.Jwt), GetBalance(svc))
	app.Get("/account/transactions", middleware.JwtProtected(cfg.Jwt), GetTransactions(svc))
}

// GetBalance returns the handler for GET /account/balance.
func GetBalance(svc *transfersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := middleware.SubjectFromContext(c)
		if !ok {
			return common.ErrorResponseJSON(c, fiber.StatusUnauthorized,
				"Unauthorized", "missing user context")
		}
		balance, err := svc.GetBalance(c.Context(), accountID)
		if err != nil {
			log.Errorf("Balance lookup failed: %v", err)
			return common.ErrorResponseJSON(c, common.ErrorToStatusCode(err),
				"Balance lookup failed", err.Error())
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Balance retrieved", BalanceResponse{
			AccountID: balance.AccountID,
			Balance:   balance.Amount,
			Currency:  balance.Currency.String(),
		})
	}
}

// GetTransactions returns the handler for GET /account/transactions.
func GetTransactions(svc *transfersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accountID, ok := middleware.SubjectFromContext(c)
		if !ok {
			return common.ErrorResponseJSON(c, fiber.StatusUnauthorized,
				"Unauthorized", "missing user context")
		}
		entries, err := svc.ListTransactions(c.Context(), accountID)
		if err != nil {
			log.Errorf("History lookup failed: %v", err)
			return common.ErrorResponseJSON(c, common.ErrorToStatusCode(err),
				"History lookup failed", err.Error())
		}
		dtos := make([]EntryDTO, len(entries))
		for i, e := range entries {
			dtos[i] = EntryDTO{
				TxID:         e.TxID,
				Type:         string(e.Type),
				Amount:       e.Amount,
				Currency:     e.Currency.String(),
				Counterparty: e.Counterparty,
				CreatedAt:    e.CreatedAt,
			}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transactions retrieved", dtos)
	}
}
