package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"investment-core/internal/account"
	"investment-core/internal/domain"
)

const profileFolder = "profile"

func (s *Server) register(c *gin.Context) {
	var req struct {
		FullName string `json:"fullName"`
		UserName string `json:"userName"`
		Email    string `json:"email"`
		Phone    string `json:"phoneNumber"`
		Country  string `json:"country"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}

	u, err := s.Accounts.Register(c.Request.Context(), account.RegisterInput{
		FullName: req.FullName,
		UserName: req.UserName,
		Email:    req.Email,
		Phone:    req.Phone,
		Country:  req.Country,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "registered, check your email for the verification code",
		"user":    toUserView(u),
	})
}

func (s *Server) verify(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	u, err := s.Accounts.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified", "user": toUserView(u)})
}

func (s *Server) resendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if err := s.Accounts.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	sess, err := s.Accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token, "user": toUserView(sess.User)})
}

func (s *Server) me(c *gin.Context) {
	p, err := s.Accounts.Me(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(p.User), "balances": balanceView(p.Balances)})
}

func (s *Server) updateProfile(c *gin.Context) {
	var req struct {
		FullName    *string `json:"fullName"`
		UserName    *string `json:"userName"`
		Phone       *string `json:"phoneNumber"`
		Country     *string `json:"country"`
		CountryFlag *string `json:"countryFlag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	u, err := s.Accounts.UpdateProfile(c.Request.Context(), currentActor(c), account.ProfilePatch{
		FullName:    req.FullName,
		UserName:    req.UserName,
		Phone:       req.Phone,
		Country:     req.Country,
		CountryFlag: req.CountryFlag,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(u)})
}

func (s *Server) changeProfilePicture(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["picture"]) == 0 {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput.Code, "a picture file is required")
		return
	}

	ctx := c.Request.Context()
	uris, err := s.Evidence.Save(ctx, profileFolder, form.File["picture"][:1])
	if err != nil {
		respondError(c, err)
		return
	}
	u, old, err := s.Accounts.ChangeProfilePicture(ctx, currentActor(c), uris)
	if err != nil {
		s.Evidence.Remove(uris)
		respondError(c, err)
		return
	}
	s.Evidence.Remove(old)
	c.JSON(http.StatusOK, gin.H{"user": toUserView(u)})
}

func (s *Server) notifications(c *gin.Context) {
	limit, _ := pageQuery(c)
	markRead, _ := strconv.ParseBool(c.Query("markRead"))
	list, err := s.Accounts.Inbox(c.Request.Context(), currentActor(c), limit, markRead)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNotificationViews(list))
}

func (s *Server) adminListUsers(c *gin.Context) {
	limit, offset := pageQuery(c)
	users, err := s.Accounts.List(c.Request.Context(), currentActor(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserViews(users))
}

func (s *Server) adminGetUser(c *gin.Context) {
	p, err := s.Accounts.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(p.User), "balances": balanceView(p.Balances)})
}

func (s *Server) adminUpdateUser(c *gin.Context) {
	var req struct {
		FullName   *string `json:"fullName"`
		Phone      *string `json:"phoneNumber"`
		Role       *string `json:"role"`
		IsVerified *bool   `json:"isVerified"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	u, err := s.Accounts.Update(c.Request.Context(), currentActor(c), c.Param("id"), account.UserPatch{
		FullName:   req.FullName,
		Phone:      req.Phone,
		Role:       req.Role,
		IsVerified: req.IsVerified,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(u)})
}

func (s *Server) adminDeleteUser(c *gin.Context) {
	if err := s.Accounts.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
