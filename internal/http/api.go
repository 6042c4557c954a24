package http

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"blogsite/internal/auth"
	"blogsite/internal/domain"
	"blogsite/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

const contextUserKey = "current_user"

// Pinger reports database liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users    service.UserService
	sessions *auth.Sessions
	db       Pinger
	logger   logrus.FieldLogger
}

func NewHandler(users service.UserService, sessions *auth.Sessions, db Pinger, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:    users,
		sessions: sessions,
		db:       db,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))
	router.Use(h.loadSession())

	router.GET("/", h.index)
	router.GET("/register/", h.registerForm)
	router.POST("/register/", h.register)
	router.GET("/login/", h.loginForm)
	router.POST("/login/", h.login)
	router.POST("/logout/", h.logout)
	router.GET("/blog/", h.blogIndex)
	router.GET("/health", h.health)
}

type registerRequest struct {
	Username  string `form:"username" binding:"required,max=50"`
	Email     string `form:"email" binding:"required,email,max=50"`
	Password1 string `form:"password1" binding:"required"`
	Password2 string `form:"password2" binding:"required"`
}

type loginRequest struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

var formFieldNames = map[string]string{
	"Username":  "username",
	"Email":     "email",
	"Password1": "password1",
	"Password2": "password2",
	"Password":  "password",
}

func (h *Handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page(c, "Home", nil))
}

func (h *Handler) blogIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "blog_index.html", h.page(c, "Blog", nil))
}

func (h *Handler) registerForm(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", h.page(c, "Register", gin.H{
		"Form":   registerRequest{},
		"Errors": service.FieldErrors{},
	}))
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	bindErr := c.ShouldBind(&req)
	form := service.RegistrationForm{
		Username:  req.Username,
		Email:     req.Email,
		Password1: req.Password1,
		Password2: req.Password2,
	}
	if bindErr != nil {
		// report binding and service errors together
		errs, err := h.users.Validate(c.Request.Context(), form, bindingErrors(bindErr))
		if err != nil {
			h.logger.WithError(err).Error("validate registration")
			c.String(http.StatusInternalServerError, "internal server error")
			return
		}
		h.renderRegister(c, req, errs)
		return
	}

	user, err := h.users.Register(c.Request.Context(), form)
	if err != nil {
		var formErr *service.FormError
		if errors.As(err, &formErr) {
			h.renderRegister(c, req, formErr.Fields)
			return
		}
		h.logger.WithError(err).Error("register user")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.sessions.Login(c.Writer, user.ID, user.Email); err != nil {
		h.logger.WithError(err).Error("start session after registration")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) renderRegister(c *gin.Context, req registerRequest, errs service.FieldErrors) {
	req.Password1, req.Password2 = "", ""
	c.HTML(http.StatusOK, "register.html", h.page(c, "Register", gin.H{
		"Form":   req,
		"Errors": errs,
	}))
}

func (h *Handler) loginForm(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", h.page(c, "Log in", gin.H{
		"Form":   loginRequest{},
		"Errors": service.FieldErrors{},
	}))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.renderLogin(c, req, bindingErrors(err))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.renderLogin(c, req, service.FieldErrors{service.NonFieldErrors: {service.MsgInvalidLogin}})
			return
		}
		h.logger.WithError(err).Error("authenticate user")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}

	if err := h.sessions.Login(c.Writer, user.ID, user.Email); err != nil {
		h.logger.WithError(err).Error("start session after login")
		c.String(http.StatusInternalServerError, "internal server error")
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) renderLogin(c *gin.Context, req loginRequest, errs service.FieldErrors) {
	req.Password = ""
	c.HTML(http.StatusOK, "login.html", h.page(c, "Log in", gin.H{
		"Form":   req,
		"Errors": errs,
	}))
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Writer, c.Request); err != nil {
		h.logger.WithError(err).Warn("logout")
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// loadSession resolves the session cookie to an active user, if any.
func (h *Handler) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.sessions.Read(c.Request)
		if err != nil {
			c.Next()
			return
		}
		id, err := claims.UserID()
		if err != nil {
			c.Next()
			return
		}
		user, err := h.users.GetByID(c.Request.Context(), id)
		if err != nil || !user.IsActive {
			c.Next()
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

func (h *Handler) page(c *gin.Context, title string, data gin.H) gin.H {
	out := gin.H{
		"Title": title,
		"User":  currentUser(c),
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func bindingErrors(err error) service.FieldErrors {
	errs := service.FieldErrors{}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.Add(service.NonFieldErrors, "Invalid form submission.")
		return errs
	}

	for _, fe := range verrs {
		field, ok := formFieldNames[fe.Field()]
		if !ok {
			field = service.NonFieldErrors
		}
		switch fe.Tag() {
		case "required":
			errs.Add(field, service.MsgRequired)
		case "email":
			errs.Add(field, "Enter a valid email address.")
		case "max":
			errs.Add(field, "Ensure this value has at most "+fe.Param()+" characters.")
		default:
			errs.Add(field, "Enter a valid value.")
		}
	}
	return errs
}
