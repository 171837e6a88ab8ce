package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/services"
)

const resetRequestedMessage = "If the email is registered, a password reset link has been sent"

func (a *API) signup(c echo.Context) error {
	req := new(signupRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	res, err := a.sessions.Signup(c.Request().Context(), services.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return errEmailTaken
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, newAuthResponse(res))
}

func (a *API) login(c echo.Context) error {
	req := new(loginRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	res, err := a.sessions.Login(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, common.ErrorUnauthorized) {
		return errBadLogin
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAuthResponse(res))
}

func (a *API) refresh(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	pair, err := a.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if errors.Is(err, common.ErrorUnauthorized) {
		return errBadRefresh
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (a *API) logout(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	if err := a.sessions.Logout(c.Request().Context(), currentUser(c).ID, req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Logged out"})
}

func (a *API) requestReset(c echo.Context) error {
	req := new(resetRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	if err := a.sessions.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: resetRequestedMessage})
}

func (a *API) validateReset(c echo.Context) error {
	check, err := a.sessions.ValidateResetToken(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resetValidationResponse{Valid: check.Valid, Message: check.Reason.Message()})
}

func (a *API) confirmReset(c echo.Context) error {
	req := new(resetConfirmRequest)
	if err := c.Bind(req); err != nil {
		return errBadPayload
	}

	if err := a.sessions.ConfirmPasswordReset(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password has been reset"})
}

func (a *API) me(c echo.Context) error {
	user, err := a.sessions.Me(c.Request().Context(), currentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}
