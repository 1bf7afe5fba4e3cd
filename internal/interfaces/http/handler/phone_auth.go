package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	apphoneauth "github.com/erp/bcsync/internal/application/phoneauth"
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
)

// PhoneAuthenticator runs the mobile sign-in flow
type PhoneAuthenticator interface {
	Start(ctx context.Context, phone string) (*phoneauth.Challenge, error)
	Check(ctx context.Context, token string) (*apphoneauth.LoginResult, error)
	Wait(ctx context.Context, token string) (*apphoneauth.LoginResult, error)
}

// PhoneAuthHandler handles mobile sign-in endpoints
type PhoneAuthHandler struct {
	BaseHandler
	auth PhoneAuthenticator
}

// NewPhoneAuthHandler creates a new PhoneAuthHandler
func NewPhoneAuthHandler(auth PhoneAuthenticator) *PhoneAuthHandler {
	return &PhoneAuthHandler{auth: auth}
}

// PhoneLoginRequest starts a mobile sign-in
// @Description Phone number in international format
type PhoneLoginRequest struct {
	Phone string `json:"phone" binding:"required,e164" example:"+37060000666"`
}

// CustomerSummary is the synchronized customer the challenged phone belongs to
// @Description Matched customer
type CustomerSummary struct {
	ExternalID  string `json:"external_id" example:"5d115c9c-44e3-ea11-bb43-000d3a2feca1"`
	Number      string `json:"number" example:"C00010"`
	DisplayName string `json:"display_name" example:"Adatum Corporation"`
	Email       string `json:"email,omitempty" example:"robert.townes@contoso.com"`
}

// PhoneLoginResponse is the state of a challenge
// @Description Challenge status with identity once authenticated
type PhoneLoginResponse struct {
	Status   phoneauth.AuthStatus `json:"status" example:"authenticated"`
	Code     string               `json:"code,omitempty" example:"60001019906"`
	Name     string               `json:"name,omitempty" example:"MARY ÄNN"`
	Surname  string               `json:"surname,omitempty" example:"O’CONNEŽ-ŠUSLIK TESTNUMBER"`
	Country  string               `json:"country,omitempty" example:"lt"`
	Customer *CustomerSummary     `json:"customer,omitempty"`
}

func toPhoneLoginResponse(result *apphoneauth.LoginResult) *PhoneLoginResponse {
	if result == nil || result.Status == nil {
		return nil
	}
	resp := &PhoneLoginResponse{
		Status:  result.Status.Status,
		Code:    result.Status.Code,
		Name:    result.Status.Name,
		Surname: result.Status.Surname,
		Country: result.Status.Country,
	}
	if result.Customer != nil {
		resp.Customer = toCustomerSummary(result.Customer)
	}
	return resp
}

func toCustomerSummary(c *integration.Customer) *CustomerSummary {
	return &CustomerSummary{
		ExternalID:  c.ExternalID,
		Number:      c.Number,
		DisplayName: c.DisplayName,
		Email:       c.Email,
	}
}

// Login godoc
//
//	@ID				loginPhone
//	@Summary		Start a mobile sign-in
//	@Description	Sends a challenge to the phone. Show control_code to the user so they can compare it on the device.
//	@Tags			phone-auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PhoneLoginRequest	true	"Phone number"
//	@Success		200		{object}	APIResponse[phoneauth.Challenge]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		412		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/auth/phone/login [post]
func (h *PhoneAuthHandler) Login(c *gin.Context) {
	var req PhoneLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	challenge, err := h.auth.Start(c.Request.Context(), req.Phone)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, challenge)
}

// Status godoc
//
//	@ID				statusPhone
//	@Summary		Check a mobile sign-in once
//	@Tags			phone-auth
//	@Produce		json
//	@Param			token	path		string	true	"Challenge token"
//	@Success		200		{object}	APIResponse[PhoneLoginResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/auth/phone/status/{token} [get]
func (h *PhoneAuthHandler) Status(c *gin.Context) {
	h.resolve(c, h.auth.Check)
}

// Wait godoc
//
//	@ID				waitPhone
//	@Summary		Wait for a mobile sign-in to resolve
//	@Description	Polls the provider every 2 seconds, at most 60 times.
//	@Tags			phone-auth
//	@Produce		json
//	@Param			token	path		string	true	"Challenge token"
//	@Success		200		{object}	APIResponse[PhoneLoginResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	APIResponse[PhoneLoginResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		408		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/auth/phone/wait/{token} [get]
func (h *PhoneAuthHandler) Wait(c *gin.Context) {
	h.resolve(c, h.auth.Wait)
}

func (h *PhoneAuthHandler) resolve(c *gin.Context, fn func(ctx context.Context, token string) (*apphoneauth.LoginResult, error)) {
	token := c.Param("token")
	if token == "" {
		h.BadRequest(c, "Challenge token is required")
		return
	}

	result, err := fn(c.Request.Context(), token)
	if err != nil {
		if resp := toPhoneLoginResponse(result); resp != nil {
			h.HandleErrorWithData(c, err, resp)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPhoneLoginResponse(result))
}
