// Package transfer provides the HTTP handlers for the transfer endpoint.
package transfer

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/p2pwallet/wallet/pkg/config"
	"github.com/p2pwallet/wallet/pkg/currency"
	"github.com/p2pwallet/wallet/pkg/domain/transfer"
	"github.com/p2pwallet/wallet/pkg/middleware"
	transfersvc "github.com/p2pwallet/wallet/pkg/service/transfer"
	"github.com/p2pwallet/wallet/webapi/common"
)

// Routes registers the transfer endpoint.
//
//   - POST /transfer : move funds from the authenticated account to a recipient.
func Routes(app *fiber.App, svc *transfersvc.Service, cfg *config.AppConfig) {
	app.Post("/transfer", middleware.JwtProtected(cfg.Jwt), MakeTransfer(svc))
}

// MakeTransfer returns the handler for POST /transfer. The sender identity
// comes from the verified JWT subject; the body supplies recipient, amount,
// currency and the idempotency key. A replayed idempotency key returns the
// original result with status COMPLETED_PREVIOUSLY.
func MakeTransfer(svc *transfersvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		senderID, ok := middleware.SubjectFromContext(c)
		if !ok {
			return common.ErrorResponseJSON(c, fiber.StatusUnauthorized,
				"Unauthorized", "missing user context")
		}
		input, err := common.BindAndValidate[TransferRequest](c)
		if input == nil {
			return err // error response already written
		}

		result, err := svc.Execute(c.Context(), transfer.Request{
			SenderID:       senderID,
			RecipientID:    strings.TrimSpace(input.RecipientID),
			Amount:         input.Amount,
			Currency:       currency.Code(strings.TrimSpace(input.Currency)),
			IdempotencyKey: strings.TrimSpace(input.IdempotencyKey),
		})
		if err != nil {
			log.Errorf("Transfer failed: %v", err)
			return common.ErrorResponseJSON(c, common.ErrorToStatusCode(err),
				"Transfer failed", err.Error())
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Transfer processed", result)
	}
}
