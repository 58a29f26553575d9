package core

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, authService AuthService, codec *TokenCodec, db *pgxpool.Pool, stats *StatsService) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	// Global middleware: request id -> origin/CORS -> token authentication.
	// TokenAuth only attaches the principal; route groups decide whether
	// anonymous is acceptable.
	r.Use(RequestIDMiddleware())
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(TokenAuth(codec, authService))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	userRepo := NewPgUserRepository(db)
	groupRepo := NewPgMuscleGroupRepository(db)
	exerciseRepo := NewPgExerciseRepository(db)
	logRepo := NewPgWorkoutLogRepository(db)

	api := r.Group("/api/v1")
	{
		api.POST("/users/register", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username, email and password are required")
				return
			}

			principal, token, err := authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
			if err != nil {
				if errors.Is(err, ErrDuplicateUser) {
					respondError(c, http.StatusConflict, "CONFLICT", "username or email already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "registration failed")
				return
			}
			c.JSON(http.StatusCreated, gin.H{"user": userResponse(principal), "token": token})
		})

		api.POST("/users/login", func(c *gin.Context) {
			var req struct {
				Email    string `json:"email"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			principal, token, err := authService.Login(c.Request.Context(), req.Email, req.Password)
			if err != nil {
				respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "email or password is wrong")
				return
			}
			c.JSON(http.StatusOK, gin.H{"user": userResponse(principal), "token": token})
		})

		api.GET("/users/me", func(c *gin.Context) {
			p, ok := requirePrincipal(c)
			if !ok {
				return
			}

			ctx := c.Request.Context()
			logCount, err := logRepo.CountByUser(ctx, p.ID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to count workout logs")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"username":   p.Username,
				"email":      p.Email,
				"role":       p.Role,
				"authority":  p.Authority(),
				"log_count":  logCount,
				"created_at": p.CreatedAt,
			})
		})

		api.GET("/users/:username", func(c *gin.Context) {
			if _, ok := requirePrincipal(c); !ok {
				return
			}

			ctx := c.Request.Context()
			u, err := userRepo.FindByUsername(ctx, c.Param("username"))
			if err != nil {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
				return
			}
			logCount, err := logRepo.CountByUser(ctx, u.ID)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to count workout logs")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"username":   u.Username,
				"role":       u.Role,
				"log_count":  logCount,
				"created_at": u.CreatedAt,
			})
		})

		// Catalog reads are public.
		api.GET("/muscle-groups", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := groupRepo.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch muscle groups")
				return
			}
			c.JSON(http.StatusOK, pagedResponse(items, page, perPage, total))
		})

		api.GET("/muscle-groups/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			ctx := c.Request.Context()
			g, err := groupRepo.Get(ctx, id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "muscle group not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch muscle group")
				return
			}
			exercises, err := exerciseRepo.ListByMuscleGroup(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch exercises")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id":          g.ID,
				"name":        g.Name,
				"description": g.Description,
				"exercises":   exercises,
			})
		})

		api.GET("/exercises", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := exerciseRepo.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch exercises")
				return
			}
			c.JSON(http.StatusOK, pagedResponse(items, page, perPage, total))
		})

		api.GET("/exercises/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			e, err := exerciseRepo.Get(c.Request.Context(), id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "exercise not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch exercise")
				return
			}
			c.JSON(http.StatusOK, e)
		})

		// Workout logs are private to their owner (admins may read any).
		api.GET("/users/:username/logs", func(c *gin.Context) {
			target, ok := requireOwnerOrAdmin(c, userRepo)
			if !ok {
				return
			}
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := logRepo.ListByUser(c.Request.Context(), target.ID, page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch workout logs")
				return
			}
			c.JSON(http.StatusOK, pagedResponse(items, page, perPage, total))
		})

		api.POST("/users/:username/logs", func(c *gin.Context) {
			target, ok := requireOwnerOrAdmin(c, userRepo)
			if !ok {
				return
			}

			var req []struct {
				ExerciseID  int64        `json:"exercise_id"`
				Failed      bool         `json:"failed"`
				PerformedAt *time.Time   `json:"performed_at"`
				Sets        []WorkoutSet `json:"sets"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if len(req) == 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "at least one log entry is required")
				return
			}

			ctx := c.Request.Context()
			inputs := make([]WorkoutLogInput, 0, len(req))
			for _, item := range req {
				exists, err := exerciseRepo.Exists(ctx, item.ExerciseID)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to check exercise")
					return
				}
				if !exists {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown exercise_id")
					return
				}
				in := WorkoutLogInput{ExerciseID: item.ExerciseID, Failed: item.Failed, Sets: item.Sets}
				if item.PerformedAt != nil {
					in.PerformedAt = *item.PerformedAt
				}
				inputs = append(inputs, in)
			}

			ids, err := logRepo.CreateBatch(ctx, target.ID, inputs)
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}

			// Stats are advisory; failures must not fail the write.
			if stats != nil {
				for _, in := range inputs {
					e, err := exerciseRepo.Get(ctx, in.ExerciseID)
					if err != nil {
						continue
					}
					_ = stats.RecordWorkout(ctx, target.ID, ActivityEntry{
						Username:    target.Username,
						Exercise:    e.Name,
						MuscleGroup: e.MuscleGroup,
						LoggedAt:    time.Now(),
					})
				}
			}

			c.JSON(http.StatusCreated, gin.H{"created": ids, "count": len(ids)})
		})

		api.DELETE("/users/:username/logs/:id", func(c *gin.Context) {
			target, ok := requireOwnerOrAdmin(c, userRepo)
			if !ok {
				return
			}
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			ctx := c.Request.Context()
			l, err := logRepo.Get(ctx, id)
			if err != nil || l.UserID != target.ID {
				respondError(c, http.StatusNotFound, "NOT_FOUND", "workout log not found")
				return
			}
			if err := logRepo.Delete(ctx, id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete workout log")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin := api.Group("/admin")
		admin.Use(AdminOnly())

		admin.GET("/users", func(c *gin.Context) {
			page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			items, total, err := userRepo.List(c.Request.Context(), page, perPage)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
				return
			}
			c.JSON(http.StatusOK, pagedResponse(items, page, perPage, total))
		})

		admin.POST("/users", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Email    string `json:"email"`
				Password string `json:"password"`
				Role     string `json:"role"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			role := RoleUser
			if strings.TrimSpace(req.Role) != "" {
				parsed, err := ParseRole(req.Role)
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
					return
				}
				role = parsed
			}

			principal, _, err := authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
			if err != nil {
				if errors.Is(err, ErrDuplicateUser) {
					respondError(c, http.StatusConflict, "CONFLICT", "username or email already exists")
					return
				}
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			if role != RoleUser {
				if _, err := db.Exec(c.Request.Context(), `UPDATE users SET role=$1 WHERE id=$2`, string(role), principal.ID); err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set role")
					return
				}
				principal.Role = role
			}
			c.JSON(http.StatusCreated, userResponse(principal))
		})

		admin.POST("/muscle-groups", func(c *gin.Context) {
			var req struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name is required")
				return
			}
			g, err := groupRepo.Create(c.Request.Context(), req.Name, req.Description)
			if err != nil {
				if isUniqueViolation(err) {
					respondError(c, http.StatusConflict, "CONFLICT", "muscle group already exists")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create muscle group")
				return
			}
			c.JSON(http.StatusCreated, g)
		})

		admin.PATCH("/muscle-groups/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			var req struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if strings.TrimSpace(req.Name) == "" && strings.TrimSpace(req.Description) == "" {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name or description is required")
				return
			}
			// Partial update: unspecified fields keep current values.
			ctx := c.Request.Context()
			current, err := groupRepo.Get(ctx, id)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "muscle group not found")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch muscle group")
				return
			}
			name := strings.TrimSpace(req.Name)
			if name == "" {
				name = current.Name
			}
			description := strings.TrimSpace(req.Description)
			if description == "" {
				description = current.Description
			}
			g, err := groupRepo.Update(ctx, id, name, description)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update muscle group")
				return
			}
			c.JSON(http.StatusOK, g)
		})

		admin.DELETE("/muscle-groups/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := groupRepo.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete muscle group")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.POST("/exercises", func(c *gin.Context) {
			var req struct {
				Name          string `json:"name"`
				MuscleGroupID int64  `json:"muscle_group_id"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			ctx := c.Request.Context()
			if _, err := groupRepo.Get(ctx, req.MuscleGroupID); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown muscle_group_id")
				return
			}
			id, err := exerciseRepo.Create(ctx, ExerciseInput{Name: req.Name, MuscleGroupID: req.MuscleGroupID})
			if err != nil {
				if isUniqueViolation(err) {
					respondError(c, http.StatusConflict, "CONFLICT", "exercise already exists")
					return
				}
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			e, err := exerciseRepo.Get(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load created exercise")
				return
			}
			c.JSON(http.StatusCreated, e)
		})

		admin.PUT("/exercises/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			var req struct {
				Name          string `json:"name"`
				MuscleGroupID int64  `json:"muscle_group_id"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			ctx := c.Request.Context()
			if err := exerciseRepo.Update(ctx, id, ExerciseInput{Name: req.Name, MuscleGroupID: req.MuscleGroupID}); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "exercise not found")
					return
				}
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
				return
			}
			e, err := exerciseRepo.Get(ctx, id)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load exercise")
				return
			}
			c.JSON(http.StatusOK, e)
		})

		admin.DELETE("/exercises/:id", func(c *gin.Context) {
			id, err := parseID(c.Param("id"))
			if err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
				return
			}
			if err := exerciseRepo.Delete(c.Request.Context(), id); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete exercise")
				return
			}
			c.Status(http.StatusNoContent)
		})

		admin.GET("/stats/overview", func(c *gin.Context) {
			ov, err := stats.Overview(c.Request.Context())
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load stats")
				return
			}
			c.JSON(http.StatusOK, ov)
		})

		admin.GET("/system/status", func(c *gin.Context) {
			st := CollectSystemStatus(c.Request.Context(), db, stats, startedAt)
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}

// requireOwnerOrAdmin resolves the :username path parameter and ensures the
// caller is that user or an admin.
func requireOwnerOrAdmin(c *gin.Context, users UserRepository) (*UserRecord, bool) {
	p, ok := requirePrincipal(c)
	if !ok {
		return nil, false
	}
	username := c.Param("username")
	target, err := users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "user not found")
		return nil, false
	}
	if p.Username != target.Username && p.Role != RoleAdmin {
		respondError(c, http.StatusForbidden, "FORBIDDEN", "not allowed to access these logs")
		return nil, false
	}
	return target, true
}

func userResponse(p Principal) gin.H {
	return gin.H{
		"id":         p.ID,
		"username":   p.Username,
		"email":      p.Email,
		"role":       p.Role,
		"created_at": p.CreatedAt,
	}
}

func pagedResponse[T any](items []T, page, perPage, total int) gin.H {
	return gin.H{
		"items":       items,
		"page":        page,
		"per_page":    perPage,
		"total_items": total,
		"total_pages": calcTotalPages(total, perPage),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
