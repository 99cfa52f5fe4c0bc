package routes

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"engdocs-qa-platform/internal/config"
	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/internal/observability"
	"engdocs-qa-platform/internal/queue"
	"engdocs-qa-platform/internal/storage"
	"engdocs-qa-platform/internal/store"
	"engdocs-qa-platform/middleware"
	"engdocs-qa-platform/models"
	"engdocs-qa-platform/services"
	"engdocs-qa-platform/utils"
)

// DocumentDeps bundles the ingestion surface dependencies.
type DocumentDeps struct {
	Config    *config.Config
	Documents *store.DocumentStore
	Objects   *storage.ObjectStore
	Retriever *services.Retriever
	Queue     *asynq.Client
	Emitter   *observability.Emitter
}

func SetupDocumentRoutes(router *gin.Engine, deps *DocumentDeps, authMiddleware *middleware.AuthMiddleware) {
	docs := router.Group("/documents")
	docs.Use(authMiddleware.RequireAuth())

	enqueue := func(c *gin.Context, doc *models.Document, traceID string) (string, error) {
		task, err := queue.NewDocumentProcessTask(doc.ID, traceID)
		if err != nil {
			return "", err
		}
		info, err := deps.Queue.EnqueueContext(c.Request.Context(), task)
		if err != nil {
			return "", utils.Transient("dispatching ingestion task", err)
		}
		return info.ID, nil
	}

	docs.POST("/upload", func(c *gin.Context) {
		traceID := middleware.GetTraceID(c)
		claims := middleware.GetClaims(c)

		groupID, err := strconv.ParseInt(c.PostForm("group_id"), 10, 64)
		if err != nil {
			utils.RespondWithBadRequest(c, "group_id is required", nil)
			return
		}
		if !claims.MemberOfGroup(groupID) {
			utils.RespondWithForbidden(c, "Not a member of this group")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "file is required", nil)
			return
		}
		if fileHeader.Size > deps.Config.MaxFileSize {
			utils.RespondWithBadRequest(c,
				fmt.Sprintf("file exceeds the %d MB limit", deps.Config.MaxFileSize/(1024*1024)), nil)
			return
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileHeader.Filename), "."))
		if !allowedExtension(ext, deps.Config.AllowedExtensions) {
			utils.RespondWithBadRequest(c,
				fmt.Sprintf("unsupported file type %q", ext),
				gin.H{"allowed": deps.Config.AllowedExtensions})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "reading upload failed", nil)
			return
		}
		defer file.Close()

		contentHash, err := utils.HashReader(file)
		if err != nil {
			utils.RespondWithInternalError(c, "hashing upload failed", nil)
			return
		}
		if _, err := file.Seek(0, 0); err != nil {
			utils.RespondWithInternalError(c, "rewinding upload failed", nil)
			return
		}

		// Dedupe before any write: identical bytes in the same group are
		// reported, not reprocessed.
		if existing, err := deps.Documents.GetByHash(c.Request.Context(), contentHash, groupID); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		} else if existing != nil {
			c.JSON(http.StatusConflict, gin.H{
				"error_code":  "duplicate_document",
				"message":     "An identical document already exists in this group",
				"document_id": existing.ID,
				"status":      existing.Status,
			})
			return
		}

		objectKey := storage.ObjectKey(groupID, contentHash, fileHeader.Filename)
		contentType := fileHeader.Header.Get("Content-Type")
		if err := deps.Objects.Put(c.Request.Context(), objectKey, file, fileHeader.Size, contentType); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}

		doc := &models.Document{
			Name:        fileHeader.Filename,
			ContentHash: contentHash,
			GroupID:     groupID,
			ObjectKey:   objectKey,
		}
		if err := deps.Documents.Create(c.Request.Context(), doc); err != nil {
			if isDuplicateRecord(err) {
				// Lost a concurrent insert of the same bytes. Both uploads
				// wrote the same deterministic object key, so the stored
				// object now belongs to the winning record and must stay.
				if existing, lookupErr := deps.Documents.GetByHash(c.Request.Context(), contentHash, groupID); lookupErr == nil && existing != nil {
					c.JSON(http.StatusConflict, gin.H{
						"error_code":  "duplicate_document",
						"message":     "An identical document already exists in this group",
						"document_id": existing.ID,
						"status":      existing.Status,
					})
					return
				}
				utils.RespondWithAppError(c, err, traceID)
				return
			}
			// Roll the object back so a failed record does not strand it.
			if delErr := deps.Objects.Delete(c.Request.Context(), objectKey); delErr != nil {
				logger.Warn("orphaned object cleanup failed", "key", objectKey, "error", delErr)
			}
			utils.RespondWithAppError(c, err, traceID)
			return
		}

		taskID, err := enqueue(c, doc, traceID)
		if err != nil {
			// Record stays pending; a retry can re-dispatch it.
			deps.Emitter.LogError(c.Request.Context(), models.EventUpload, traceID, "task dispatch failed", err)
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		if err := deps.Documents.SetTaskID(c.Request.Context(), doc.ID, taskID); err != nil {
			logger.Warn("storing task handle failed", "document_id", doc.ID, "error", err)
		}

		deps.Emitter.LogUpload(c.Request.Context(), traceID, claims.UserID,
			fmt.Sprintf("document %q accepted for processing", doc.Name), models.EventStatusSuccess)

		c.JSON(http.StatusAccepted, models.UploadResponse{
			DocumentID: doc.ID,
			Filename:   doc.Name,
			Status:     doc.Status,
			TaskID:     taskID,
			CreatedAt:  doc.CreatedAt,
		})
	})

	docs.GET("", func(c *gin.Context) {
		claims := middleware.GetClaims(c)
		limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
		offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

		list, err := deps.Documents.List(c.Request.Context(), claims.GroupIDs, limit, offset)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": list})
	})

	docs.GET("/:id", func(c *gin.Context) {
		doc, ok := loadOwnedDocument(c, deps)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	docs.POST("/:id/retry", func(c *gin.Context) {
		traceID := middleware.GetTraceID(c)
		doc, ok := loadOwnedDocument(c, deps)
		if !ok {
			return
		}

		if err := deps.Documents.ResetForRetry(c.Request.Context(), doc.ID); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		taskID, err := enqueue(c, doc, traceID)
		if err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		if err := deps.Documents.SetTaskID(c.Request.Context(), doc.ID, taskID); err != nil {
			logger.Warn("storing task handle failed", "document_id", doc.ID, "error", err)
		}
		c.JSON(http.StatusAccepted, gin.H{"document_id": doc.ID, "status": models.StatusPending, "task_id": taskID})
	})

	docs.DELETE("/:id", func(c *gin.Context) {
		traceID := middleware.GetTraceID(c)
		doc, ok := loadOwnedDocument(c, deps)
		if !ok {
			return
		}

		// Index entries and the stored object go first; the record is the
		// source of truth and falls last.
		if err := deps.Retriever.DeleteByFile(c.Request.Context(), doc.ObjectKey); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		if err := deps.Objects.Delete(c.Request.Context(), doc.ObjectKey); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		if err := deps.Documents.Delete(c.Request.Context(), doc.ID); err != nil {
			utils.RespondWithAppError(c, err, traceID)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	})

	docs.GET("/:id/download", func(c *gin.Context) {
		doc, ok := loadOwnedDocument(c, deps)
		if !ok {
			return
		}
		url, err := deps.Objects.PresignGet(c.Request.Context(), doc.ObjectKey)
		if err != nil {
			utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": deps.Config.PresignTTL})
	})
}

// loadOwnedDocument loads the :id document and enforces group
// membership. Access failures are reported as not-found so ids outside
// the caller's groups are not probeable.
func loadOwnedDocument(c *gin.Context, deps *DocumentDeps) (*models.Document, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		utils.RespondWithBadRequest(c, "invalid document id", nil)
		return nil, false
	}
	doc, err := deps.Documents.Get(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithAppError(c, err, middleware.GetTraceID(c))
		return nil, false
	}
	claims := middleware.GetClaims(c)
	if !claims.MemberOfGroup(doc.GroupID) {
		utils.RespondWithNotFound(c, "document not found")
		return nil, false
	}
	return doc, true
}

// isDuplicateRecord reports whether a Create failure was the unique
// (content_hash, group_id) index firing. That object key already
// belongs to the winning record, so no rollback may touch it.
func isDuplicateRecord(err error) bool {
	var ae *utils.AppError
	return errors.As(err, &ae) && ae.Code == "duplicate_document"
}

func allowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}
