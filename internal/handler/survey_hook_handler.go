package handler

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/smsinterview/internal/conversation"
	"github.com/GTDGit/smsinterview/internal/utils"
)

// SMS gateway providers.
const (
	ProviderTelerivet = "telerivet"
	ProviderTwilio    = "twilio"
)

// Conversation answers one inbound message; see conversation.Engine.
type Conversation interface {
	Handle(ctx context.Context, msg conversation.Message) (string, error)
}

// HookOptions configures webhook verification.
type HookOptions struct {
	// TwilioAuthToken enables X-Twilio-Signature checks when set.
	TwilioAuthToken string
	// PublicBaseURL is the externally visible scheme and host Twilio signs,
	// e.g. "https://sms.example.org".
	PublicBaseURL string
	// TelerivetSecret is compared with the "secret" form field when set.
	TelerivetSecret string
}

// SurveyHookHandler receives SMS webhooks for a survey and replies in the
// provider's format.
type SurveyHookHandler struct {
	engine Conversation
	opts   HookOptions
}

// NewSurveyHookHandler constructs a SurveyHookHandler.
func NewSurveyHookHandler(engine Conversation, opts HookOptions) *SurveyHookHandler {
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")
	return &SurveyHookHandler{engine: engine, opts: opts}
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// HandleAuto handles POST /surveys/:id, picking the provider from the request.
func (h *SurveyHookHandler) HandleAuto(c *gin.Context) {
	if detectProvider(c) == ProviderTwilio {
		h.HandleTwilio(c)
		return
	}
	h.HandleTelerivet(c)
}

func detectProvider(c *gin.Context) string {
	if c.GetHeader("X-Twilio-Signature") != "" {
		return ProviderTwilio
	}
	if c.PostForm("From") != "" || c.PostForm("Body") != "" || c.PostForm("MessageSid") != "" {
		return ProviderTwilio
	}
	return ProviderTelerivet
}

// HandleTelerivet handles POST /surveys/:id/telerivet
func (h *SurveyHookHandler) HandleTelerivet(c *gin.Context) {
	c.Set("provider", ProviderTelerivet)

	if h.opts.TelerivetSecret != "" && !utils.SecretsEqual(c.PostForm("secret"), h.opts.TelerivetSecret) {
		log.Warn().Str("survey_id", c.Param("id")).Msg("Telerivet webhook secret mismatch")
		utils.Error(c, 403, "INVALID_SIGNATURE", "Invalid webhook secret")
		return
	}

	phone := strings.TrimSpace(c.PostForm("from_number"))
	if phone == "" {
		utils.Error(c, 400, "MISSING_FIELD", "from_number is required")
		return
	}

	reply := h.handle(c, phone, c.PostForm("content"))

	messages := []gin.H{}
	if reply != "" {
		messages = append(messages, gin.H{"content": reply})
	}
	c.JSON(200, gin.H{"messages": messages})
}

// HandleTwilio handles POST /surveys/:id/twilio
func (h *SurveyHookHandler) HandleTwilio(c *gin.Context) {
	c.Set("provider", ProviderTwilio)

	if err := c.Request.ParseForm(); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid form body")
		return
	}

	if h.opts.TwilioAuthToken != "" {
		fullURL := h.opts.PublicBaseURL + c.Request.URL.RequestURI()
		signature := c.GetHeader("X-Twilio-Signature")
		if !utils.VerifyTwilioSignature(h.opts.TwilioAuthToken, fullURL, c.Request.PostForm, signature) {
			log.Warn().Str("survey_id", c.Param("id")).Str("url", fullURL).Msg("Twilio signature mismatch")
			utils.Error(c, 403, "INVALID_SIGNATURE", "Invalid Twilio signature")
			return
		}
	}

	phone := strings.TrimSpace(c.PostForm("From"))
	if phone == "" {
		utils.Error(c, 400, "MISSING_FIELD", "From is required")
		return
	}

	reply := h.handle(c, phone, c.PostForm("Body"))

	resp := twimlResponse{}
	if reply != "" {
		resp.Messages = []string{reply}
	}
	c.XML(200, resp)
}

// fallbackReply is sent when the engine could not produce any reply.
const fallbackReply = "There was an error processing your response, please try again."

func (h *SurveyHookHandler) handle(c *gin.Context, phone, text string) string {
	msg := conversation.Message{
		Phone:    phone,
		SurveyID: c.Param("id"),
		Text:     text,
	}

	reply, err := h.engine.Handle(c.Request.Context(), msg)
	if err != nil {
		log.Error().
			Err(err).
			Str("survey_id", msg.SurveyID).
			Str("phone", phone).
			Msg("Failed to answer message")
		return fallbackReply
	}
	return reply
}
