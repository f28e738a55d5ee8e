package web

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hyemembers/vipauction/internal/auction"
	"github.com/hyemembers/vipauction/internal/database/models"
	"github.com/hyemembers/vipauction/internal/database/repositories"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "ok",
		"serverTime": time.Now().UTC(),
	})
}

// handleBoard renders the member board. Reading the board is also what
// drives status transitions and settlement, so this must stay cheap and
// safe to hammer.
func (s *Server) handleBoard(c *fiber.Ctx) error {
	board, err := s.manager.AssembleBoard(c.UserContext(), MemberID(c))
	if err != nil {
		slog.Error("Failed to assemble board",
			slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusServiceUnavailable, "board is temporarily unavailable")
	}
	return c.JSON(board)
}

type placeBidRequest struct {
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type placeBidResponse struct {
	Message          string         `json:"message"`
	AutoExtended     bool           `json:"autoExtended"`
	AlreadyProcessed bool           `json:"alreadyProcessed"`
	Board            *auction.Board `json:"board"`
}

type bidErrorResponse struct {
	Code             auction.ErrorCode `json:"code"`
	Message          string            `json:"message"`
	MinRequired      *int64            `json:"minRequired,omitempty"`
	CurrentBidAmount *int64            `json:"currentBidAmount,omitempty"`
}

func (s *Server) handlePlaceBid(c *fiber.Ctx) error {
	memberID := MemberID(c)
	if memberID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "member identity is required to bid")
	}

	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed bid request body")
	}

	result, err := s.manager.PlaceBid(c.UserContext(), c.Params("id"), memberID, req.Amount, req.IdempotencyKey)
	if err != nil {
		if bidErr, ok := auction.AsBidError(err); ok {
			return c.Status(bidStatus(bidErr.Code)).JSON(bidErrorResponse{
				Code:             bidErr.Code,
				Message:          bidErr.Message,
				MinRequired:      bidErr.MinRequired,
				CurrentBidAmount: bidErr.CurrentBidAmount,
			})
		}
		slog.Error("Bid placement failed on store error",
			slog.String("auction_id", c.Params("id")),
			slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusServiceUnavailable, "bid could not be processed, please retry")
	}

	message := "bid accepted"
	if result.AlreadyProcessed {
		message = "bid already processed"
	}
	return c.JSON(placeBidResponse{
		Message:          message,
		AutoExtended:     result.AutoExtended,
		AlreadyProcessed: result.AlreadyProcessed,
		Board:            result.Board,
	})
}

func bidStatus(code auction.ErrorCode) int {
	switch code {
	case auction.CodeInvalidAuctionID, auction.CodeInvalidAmount:
		return fiber.StatusBadRequest
	case auction.CodeAuctionNotFound:
		return fiber.StatusNotFound
	case auction.CodeBidTooLow:
		return fiber.StatusUnprocessableEntity
	case auction.CodeAuctionNotLive, auction.CodeConflictRetry:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

type auctionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	CallStartsAt    time.Time `json:"callStartsAt"`
	DurationMinutes int       `json:"durationMinutes"`
	BiddingStartsAt time.Time `json:"biddingStartsAt"`
	BiddingEndsAt   time.Time `json:"biddingEndsAt"`

	StartingBidAmount int64 `json:"startingBidAmount"`
	MinIncrement      int64 `json:"minIncrement"`

	AntiSnipeEnabled       *bool `json:"antiSnipeEnabled"`
	AntiSnipeWindowSeconds int   `json:"antiSnipeWindowSeconds"`
	AntiSnipeExtendSeconds int   `json:"antiSnipeExtendSeconds"`
	AntiSnipeMaxExtensions int   `json:"antiSnipeMaxExtensions"`

	Status models.AuctionStatus `json:"status"`

	// Revision is required on updates; it is the optimistic-concurrency
	// token the caller read.
	Revision int64 `json:"revision"`
}

// definition fills unset anti-snipe knobs from the operator defaults so an
// administrator only has to opt in, not restate the tuning.
func (s *Server) definition(c *fiber.Ctx, req *auctionRequest) auction.AuctionDefinition {
	settings := s.manager.Settings().Current(c.UserContext())

	def := auction.AuctionDefinition{
		Title:                  req.Title,
		Description:            req.Description,
		CallStartsAt:           req.CallStartsAt.UTC(),
		DurationMinutes:        req.DurationMinutes,
		BiddingStartsAt:        req.BiddingStartsAt.UTC(),
		BiddingEndsAt:          req.BiddingEndsAt.UTC(),
		StartingBidAmount:      req.StartingBidAmount,
		MinIncrement:           req.MinIncrement,
		AntiSnipeEnabled:       settings.DefaultAntiSnipeEnabled,
		AntiSnipeWindowSeconds: req.AntiSnipeWindowSeconds,
		AntiSnipeExtendSeconds: req.AntiSnipeExtendSeconds,
		AntiSnipeMaxExtensions: req.AntiSnipeMaxExtensions,
		Status:                 req.Status,
	}
	if req.AntiSnipeEnabled != nil {
		def.AntiSnipeEnabled = *req.AntiSnipeEnabled
	}
	if def.AntiSnipeEnabled {
		if def.AntiSnipeWindowSeconds == 0 {
			def.AntiSnipeWindowSeconds = settings.DefaultAntiSnipeWindowSeconds
		}
		if def.AntiSnipeExtendSeconds == 0 {
			def.AntiSnipeExtendSeconds = settings.DefaultAntiSnipeExtendSeconds
		}
		if def.AntiSnipeMaxExtensions == 0 {
			def.AntiSnipeMaxExtensions = settings.DefaultAntiSnipeMaxExtensions
		}
	}
	if def.Status == "" {
		def.Status = models.AuctionStatusScheduled
	}
	return def
}

func (s *Server) handleListAuctions(c *fiber.Ctx) error {
	statuses := []models.AuctionStatus{
		models.AuctionStatusDraft,
		models.AuctionStatusScheduled,
		models.AuctionStatusLive,
		models.AuctionStatusEnded,
		models.AuctionStatusCancelled,
		models.AuctionStatusSettled,
	}
	if status := c.Query("status"); status != "" {
		statuses = []models.AuctionStatus{models.AuctionStatus(status)}
	}

	auctions, err := s.manager.ListAuctions(c.UserContext(), statuses)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"auctions": auctions})
}

func (s *Server) handleGetAuction(c *fiber.Ctx) error {
	a, err := s.manager.GetAuction(c.UserContext(), c.Params("id"))
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(a)
}

func (s *Server) handleCreateAuction(c *fiber.Ctx) error {
	var req auctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed auction body")
	}

	a, err := s.manager.CreateAuction(c.UserContext(), s.definition(c, &req))
	if err != nil {
		return adminError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) handleUpdateAuction(c *fiber.Ctx) error {
	var req auctionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed auction body")
	}

	a, err := s.manager.UpdateAuction(c.UserContext(), c.Params("id"), s.definition(c, &req), req.Revision)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(a)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelAuction(c *fiber.Ctx) error {
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "malformed cancel body")
		}
	}

	a, err := s.manager.CancelAuction(c.UserContext(), c.Params("id"), req.Reason)
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(a)
}

func (s *Server) handleSettleAuction(c *fiber.Ctx) error {
	a, err := s.manager.SettleManually(c.UserContext(), c.Params("id"))
	if err != nil {
		return adminError(c, err)
	}
	return c.JSON(a)
}

func (s *Server) handleHousekeep(c *fiber.Ctx) error {
	if err := s.manager.Housekeep(c.UserContext()); err != nil {
		return adminError(c, err)
	}
	return c.JSON(fiber.Map{"message": "housekeeping pass complete"})
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(s.manager.Settings().Current(c.UserContext()))
}

func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var req models.AuctionSettings
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed settings body")
	}

	settings, err := s.manager.Settings().Update(c.UserContext(), &req)
	if err != nil {
		slog.Error("Failed to update settings", slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusServiceUnavailable, "settings could not be stored")
	}
	return c.JSON(settings)
}

// adminError maps guard rejections onto client statuses; anything else is a
// store failure surfaced as 503.
func adminError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repositories.ErrAuctionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"code":    "AUCTION_NOT_FOUND",
			"message": "auction does not exist",
		})
	case errors.Is(err, auction.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"code":    "VALIDATION_FAILED",
			"message": err.Error(),
		})
	case errors.Is(err, auction.ErrScheduleOverlap):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":    "SCHEDULE_OVERLAP",
			"message": err.Error(),
		})
	case errors.Is(err, auction.ErrTermsLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":    "TERMS_LOCKED",
			"message": err.Error(),
		})
	case errors.Is(err, auction.ErrNotSettleable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":    "NOT_SETTLEABLE",
			"message": err.Error(),
		})
	case errors.Is(err, auction.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"code":    "CONFLICT_RETRY",
			"message": "auction was modified concurrently, re-read and retry",
		})
	default:
		slog.Error("Admin operation failed on store error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()))
		return fiber.NewError(fiber.StatusServiceUnavailable, "operation could not be completed")
	}
}
