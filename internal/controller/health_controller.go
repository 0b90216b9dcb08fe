package controller

import (
	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/metrics"
	"kb-assistant-be/internal/pkg/serverutils"
	"kb-assistant-be/pkg/governor"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	instanceID string
	governors  []*governor.Governor
}

func NewHealthController(instanceID string, governors ...*governor.Governor) IHealthController {
	return &healthController{instanceID: instanceID, governors: governors}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.Get("/metrics", metrics.Handler())
}

// Health reports 503 once any governor is draining so load balancers stop routing here.
func (c *healthController) Health(ctx *fiber.Ctx) error {
	res := dto.HealthResponse{Status: "ok", Instance: c.instanceID}
	for _, g := range c.governors {
		st := g.Stats()
		if st.ShuttingDown {
			res.Status = "draining"
		}
		res.Governors = append(res.Governors, st)
	}

	status := fiber.StatusOK
	if res.Status != "ok" {
		status = fiber.StatusServiceUnavailable
	}
	return ctx.Status(status).JSON(serverutils.SuccessResponse("Success get health", res))
}
