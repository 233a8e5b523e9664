package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"protocol-backend/logging"
	"protocol-backend/middleware"
	"protocol-backend/services"
)

type interactRequest struct {
	Input      string `json:"input"`
	TimelineID string `json:"timelineId"`
	EntryID    string `json:"entryId"`
}

type navigationRequest struct {
	TimelineID string `json:"timelineId"`
	EntryID    string `json:"entryId"`
}

const localAgentID = "agent_id"

// SetupProtocolRoutes mounts the agent-facing routes. The gateway-resolved
// X-User-ID is the agent's Bungie id; unknown ids get an agent on first call.
func SetupProtocolRoutes(app fiber.Router, interactions *services.InteractionService, navigation *services.NavigationService, agents *services.AgentService, log *zap.Logger) {
	log = logging.OrNop(log)
	secured := app.Group("/protocol", middleware.UserContextMiddleware(log), agentContext(agents, log))

	secured.Post("/interact", func(c *fiber.Ctx) error {
		var req interactRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		res, err := interactions.ProcessInteraction(c.UserContext(), agentID(c), req.Input,
			services.InteractionContext{TimelineID: req.TimelineID, EntryID: req.EntryID})
		if err != nil {
			return respondError(c, log, err)
		}
		status := fiber.StatusOK
		if !res.Success {
			status = statusFor(res.Kind)
		}
		return c.Status(status).JSON(res)
	})

	secured.Get("/timelines/:timelineId/progress", func(c *fiber.Ctx) error {
		p, err := agents.GetProgress(c.UserContext(), agentID(c), c.Params("timelineId"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(p)
	})

	secured.Post("/navigation/home", func(c *fiber.Ctx) error {
		res, err := navigation.GoHome(c.UserContext(), agentID(c))
		if err != nil {
			return respondError(c, log, err)
		}
		return navigationResponse(c, res)
	})

	secured.Post("/navigation/back", func(c *fiber.Ctx) error {
		var req navigationRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		res, err := navigation.GoBack(c.UserContext(), agentID(c),
			services.InteractionContext{TimelineID: req.TimelineID, EntryID: req.EntryID})
		if err != nil {
			return respondError(c, log, err)
		}
		return navigationResponse(c, res)
	})
}

// navigationResponse keeps ALREADY_AT_ROOT a 200: it is a no-op, not an error.
func navigationResponse(c *fiber.Ctx, res *services.NavigationResult) error {
	if !res.Success && res.Kind == services.FailureNotFound {
		return c.Status(fiber.StatusNotFound).JSON(res)
	}
	return c.JSON(res)
}

// agentContext resolves the gateway user to an agent id in locals.
func agentContext(agents *services.AgentService, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		agent, err := agents.EnsureAgent(c.UserContext(), middleware.UserID(c), c.Get("X-User-Name"))
		if err != nil {
			return respondError(c, log, err)
		}
		c.Locals(localAgentID, agent.ID)
		return c.Next()
	}
}

func agentID(c *fiber.Ctx) string {
	id, _ := c.Locals(localAgentID).(string)
	return id
}
