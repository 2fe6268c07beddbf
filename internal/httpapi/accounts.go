package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shrimpsizemoose/trekker/logger"

	"campusroll/internal/auth"
	"campusroll/internal/cloudinary"
	"campusroll/internal/identity"
	"campusroll/internal/model"
)

const maxUploadBytes = 10 << 20

type registerRequest struct {
	Role             model.Role    `json:"role" binding:"required"`
	FullName         string        `json:"fullName" binding:"required"`
	FamilyName       string        `json:"familyName"`
	Email            string        `json:"email" binding:"required"`
	Photo            string        `json:"photo"`
	DepartmentNumber string        `json:"departmentNumber"`
	Section          model.Section `json:"section"`
	ProfessorNumber  string        `json:"professorNumber"`
	Subject          string        `json:"subject"`
}

type loginRequest struct {
	Email string     `json:"email" binding:"required"`
	Role  model.Role `json:"role" binding:"required"`
}

type authResponse struct {
	Account model.Account  `json:"account"`
	Tokens  auth.TokenPair `json:"tokens"`
}

func (a *api) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := a.Accounts.Register(c.Request.Context(), req.Role, identity.Registration{
		FullName:         req.FullName,
		FamilyName:       req.FamilyName,
		Email:            req.Email,
		Photo:            req.Photo,
		DepartmentNumber: req.DepartmentNumber,
		Section:          req.Section,
		ProfessorNumber:  req.ProfessorNumber,
		Subject:          req.Subject,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	a.issue(c, http.StatusCreated, acc)
}

func (a *api) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := a.Accounts.Login(c.Request.Context(), req.Email, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	a.issue(c, http.StatusOK, acc)
}

func (a *api) issue(c *gin.Context, status int, acc model.Account) {
	tokens, err := a.Signer.Issue(acc)
	if err != nil {
		writeError(c, errors.Wrap(err, "issue tokens"))
		return
	}
	c.JSON(status, authResponse{Account: acc, Tokens: tokens})
}

func (a *api) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tokens, err := a.Signer.Refresh(req.RefreshToken)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token", "code": "InvalidToken"})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// logout ends the caller's device session. Tokens are stateless, so the
// shared session key is cleared only when it still belongs to the caller;
// another account that logged in since keeps its session.
func (a *api) logout(c *gin.Context) {
	if _, err := a.Accounts.LogoutAccount(c.Request.Context(), caller(c).AccountID()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) me(c *gin.Context) {
	acc, err := a.Accounts.Get(c.Request.Context(), caller(c).AccountID())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (a *api) updateMe(c *gin.Context) {
	var patch identity.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := a.Accounts.Update(c.Request.Context(), caller(c).AccountID(), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (a *api) uploadPhoto(c *gin.Context) {
	data, name, ok := a.readUpload(c, "photo")
	if !ok {
		return
	}
	res, err := a.Uploads.Upload(c.Request.Context(), data, name, cloudinary.ResourceImage)
	if err != nil {
		logger.Error.Printf("api: photo upload for %s: %v", caller(c).AccountID(), err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "image upload failed", "code": "UploadFailed"})
		return
	}
	acc, err := a.Accounts.Update(c.Request.Context(), caller(c).AccountID(), identity.Patch{Photo: &res.SecureURL})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

// readUpload reads the multipart file in field. It answers the request
// itself when uploads are disabled or the file is missing.
func (a *api) readUpload(c *gin.Context, field string) ([]byte, string, bool) {
	if a.Uploads == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "file storage not configured", "code": "UploadsDisabled"})
		return nil, "", false
	}
	fh, err := c.FormFile(field)
	if err != nil {
		badRequest(c, errors.Errorf("%s field required", field))
		return nil, "", false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, err)
		return nil, "", false
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		badRequest(c, err)
		return nil, "", false
	}
	if len(data) > maxUploadBytes {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large", "code": "TooLarge"})
		return nil, "", false
	}
	return data, fh.Filename, true
}
