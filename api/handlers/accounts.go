package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/config"
	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/enum"
	er "github.com/briefkasten-app/briefkasten/internal/errors"
	"github.com/briefkasten-app/briefkasten/internal/models"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
)

type CreateAccountRequest struct {
	DisplayName  string `json:"displayName"`
	Email        string `json:"email" binding:"required"`
	Provider     string `json:"provider"`
	ImapServer   string `json:"imapServer"`
	ImapPort     int    `json:"imapPort"`
	ImapUsername string `json:"imapUsername"`
	ImapPassword string `json:"imapPassword" binding:"required"`
	ImapSecurity string `json:"imapSecurity"`
}

func ListAccounts(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ListAccounts")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accounts, err := repos.AccountRepository.GetAll(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": accounts})
	}
}

func GetAccount(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "GetAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)

		account, err := repos.AccountRepository.GetByID(ctx, c.Param("id"))
		if err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// CreateAccount registers a mailbox. Known providers fill in their server
// settings from presets; generic accounts must carry explicit IMAP settings.
func CreateAccount(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "CreateAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)

		var req CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		provider := enum.DecodeEmailProvider(req.Provider)
		account := &models.Account{
			DisplayName:      req.DisplayName,
			Email:            req.Email,
			Provider:         provider,
			ImapServer:       req.ImapServer,
			ImapPort:         req.ImapPort,
			ImapUsername:     req.ImapUsername,
			ImapPassword:     req.ImapPassword,
			ImapSecurity:     enum.EmailSecurity(req.ImapSecurity),
			ConnectionStatus: enum.ConnectionStatusNotActive,
		}

		if preset, ok := config.PresetFor(provider); ok {
			if account.ImapServer == "" {
				account.ImapServer = preset.Server
			}
			if account.ImapPort == 0 {
				account.ImapPort = preset.Port
			}
			if account.ImapSecurity == "" {
				account.ImapSecurity = preset.Security
			}
		}
		if account.ImapUsername == "" {
			account.ImapUsername = account.Email
		}
		if account.ImapSecurity == "" {
			account.ImapSecurity = enum.EmailSecurityTLS
		}

		if account.ImapServer == "" || account.ImapPort == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "imapServer and imapPort are required for this provider"})
			return
		}

		if err := repos.AccountRepository.Create(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, account)
	}
}

// DeleteAccount removes the account and everything keyed to it.
func DeleteAccount(repos *interfaces.Repositories) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "DeleteAccount")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("id")

		if err := repos.EmailRepository.DeleteByAccount(ctx, accountID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := repos.FolderSyncStateRepository.DeleteByAccount(ctx, accountID); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := repos.AccountRepository.Delete(ctx, accountID); err != nil {
			if err == er.ErrAccountNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": accountID})
	}
}

func TestAccountConnection(syncService interfaces.SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "TestAccountConnection")
		defer span.Finish()
		tracing.TagComponentRest(span)

		if err := syncService.TestConnection(ctx, c.Param("id")); err != nil {
			tracing.TraceErr(span, err)
			status := http.StatusBadGateway
			if err == er.ErrAccountNotFound {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"connected": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"connected": true})
	}
}
