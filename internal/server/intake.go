package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/repairdesk/internal/observability/logger"
	requestdomain "github.com/smallbiznis/repairdesk/internal/request/domain"
	"go.uber.org/zap"
)

const (
	maxIntakeBodyBytes = 64 << 10

	msgRequestAccepted = "Заявка отправлена. Мы свяжемся с вами в ближайшее время!"
)

var intakeFields = []string{
	requestdomain.FieldName,
	requestdomain.FieldPhone,
	requestdomain.FieldBrand,
	requestdomain.FieldProblem,
	requestdomain.FieldPreferredTime,
}

type intakeResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (s *Server) SubmitRequest(c *gin.Context) {
	fields, err := readSubmission(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.FromContext(c.Request.Context()).Warn("intake body too large", zap.Int64("limit", tooLarge.Limit))
		}
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	_, err = s.requestSvc.Submit(c.Request.Context(), requestdomain.SubmitRequest{
		Fields:    fields,
		SourceIP:  logger.ClientOrigin(c.Request),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, intakeResponse{OK: true, Message: msgRequestAccepted})
}

// readSubmission accepts a JSON object body and falls back to form values
// when the body is not a non-empty JSON object.
func readSubmission(c *gin.Context) (map[string]string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIntakeBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if mediaType == gin.MIMEJSON {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, err
		}
		if fields, ok := decodeJSONFields(body); ok {
			return fields, nil
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	var err error
	if mediaType == gin.MIMEMultipartPOSTForm {
		err = c.Request.ParseMultipartForm(maxIntakeBodyBytes)
	} else {
		err = c.Request.ParseForm()
	}
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string, len(intakeFields))
	for _, key := range intakeFields {
		if c.Request.PostForm.Has(key) {
			fields[key] = c.Request.PostForm.Get(key)
		}
	}
	return fields, nil
}

func decodeJSONFields(body []byte) (map[string]string, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil || len(payload) == 0 {
		return nil, false
	}

	fields := make(map[string]string, len(intakeFields))
	for _, key := range intakeFields {
		switch v := payload[key].(type) {
		case nil:
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		}
	}
	return fields, true
}
