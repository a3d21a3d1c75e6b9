package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/sitegen/internal/cache"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/database"
	"github.com/ahmetcoskunkizilkaya/sitegen/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/shirou/gopsutil/v3/disk"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db        *gorm.DB
	cache     *cache.Cache
	outputDir string
}

// NewHealthHandler takes a nil db when running on the in-memory stores.
func NewHealthHandler(db *gorm.DB, c *cache.Cache, outputDir string) *HealthHandler {
	return &HealthHandler{db: db, cache: c, outputDir: outputDir}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := "ok"
	code := fiber.StatusOK
	checks := map[string]string{}

	switch {
	case h.db == nil:
		checks["db"] = "memory"
	default:
		if err := database.Ping(ctx, h.db); err != nil {
			checks["db"] = "unhealthy: " + err.Error()
			status, code = "unhealthy", fiber.StatusServiceUnavailable
		} else {
			checks["db"] = "ok"
		}
	}

	switch {
	case !h.cache.Enabled():
		checks["redis"] = "disabled"
	default:
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			if code == fiber.StatusOK {
				status = "degraded"
			}
		} else {
			checks["redis"] = "ok"
		}
	}

	resp := dto.HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if usage, err := disk.UsageWithContext(ctx, h.outputDir); err == nil {
		resp.Disk = &dto.DiskUsage{Path: h.outputDir, UsedPercent: usage.UsedPercent, FreeBytes: usage.Free}
		checks["disk"] = "ok"
	} else {
		checks["disk"] = "unknown: " + err.Error()
	}

	return c.Status(code).JSON(resp)
}
