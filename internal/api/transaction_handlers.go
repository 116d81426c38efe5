package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"investment-core/internal/domain"
	"investment-core/internal/lifecycle"
)

const proofFolder = "proof"

// amountField accepts both "12.5" and 12.5 so precision survives JSON.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	*a = amountField(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return d, nil
}

type createTxRequest struct {
	Amount  amountField `json:"amount"`
	Mode    string      `json:"mode"`
	Address string      `json:"address"`
	Plan    string      `json:"plan"`
	BotID   string      `json:"botId"`
}

// bindCreateTx reads JSON bodies or multipart/url-encoded forms. Proof files
// only arrive with multipart.
func bindCreateTx(c *gin.Context) (createTxRequest, []*multipart.FileHeader, error) {
	var req createTxRequest
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, err
		}
		return req, nil, nil
	}

	req.Amount = amountField(c.PostForm("amount"))
	req.Mode = c.PostForm("mode")
	req.Address = c.PostForm("address")
	req.Plan = c.PostForm("plan")
	req.BotID = c.PostForm("botId")

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["proof"]
	}
	return req, files, nil
}

func (s *Server) createTransaction(typ domain.TxType) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, files, err := bindCreateTx(c)
		if err != nil {
			respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
			return
		}
		amount, err := parseAmount(string(req.Amount))
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		var proof []string
		if len(files) > 0 {
			proof, err = s.Evidence.Save(ctx, proofFolder, files)
			if err != nil {
				respondError(c, err)
				return
			}
		}

		t, err := s.Lifecycle.Create(ctx, currentActor(c), lifecycle.CreateInput{
			Type:    typ,
			Amount:  amount,
			Mode:    req.Mode,
			Proof:   proof,
			Address: req.Address,
			Plan:    req.Plan,
			BotID:   req.BotID,
		})
		if err != nil {
			if len(proof) > 0 {
				s.Evidence.Remove(proof)
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, toTransactionView(t))
	}
}

func (s *Server) myTransactions(c *gin.Context) {
	limit, offset := pageQuery(c)
	list, err := s.Lifecycle.ListMine(c.Request.Context(), currentActor(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionViews(list))
}

func (s *Server) getTransaction(c *gin.Context) {
	t, err := s.Lifecycle.Get(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionView(t))
}

func (s *Server) adminListTransactions(c *gin.Context) {
	limit, offset := pageQuery(c)
	list, err := s.Lifecycle.ListAll(c.Request.Context(), currentActor(c), lifecycle.Filter{
		UserID: c.Query("userId"),
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Mode:   c.Query("mode"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionViews(list))
}

func (s *Server) adminUpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	t, err := s.Lifecycle.UpdateStatus(c.Request.Context(), currentActor(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionView(t))
}

func (s *Server) adminDeleteTransaction(c *gin.Context) {
	if err := s.Lifecycle.Delete(c.Request.Context(), currentActor(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction deleted"})
}

func (s *Server) adminFundUser(c *gin.Context) {
	var req struct {
		Amount amountField `json:"amount"`
		Mode   string      `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	amount, err := parseAmount(string(req.Amount))
	if err != nil {
		respondError(c, err)
		return
	}
	t, balance, err := s.Lifecycle.Fund(c.Request.Context(), currentActor(c), c.Param("id"), amount, req.Mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transaction": toTransactionView(t),
		"balance":     balance.String(),
	})
}
