package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartlibrarian/ai/librarian"
)

type sendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID int32  `json:"conversation_id"`
	GenerateImage  bool   `json:"generate_image"`
	GenerateSpeech bool   `json:"generate_speech"`
}

type sendMessageResponse struct {
	Conversation *conversationJSON        `json:"conversation"`
	Warning      *warningJSON             `json:"warning,omitempty"`
	Reply        string                   `json:"reply"`
	Echo         string                   `json:"echo,omitempty"`
	Messages     []messageJSON            `json:"messages"`
	Media        []librarian.MediaPayload `json:"media"`
	Reused       bool                     `json:"reused"`
}

// SendMessage runs one conversational turn. Without conversation_id the
// current_conv_id cookie selects the conversation.
func (s *APIV1Service) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ConversationID == 0 {
		req.ConversationID = currentConversation(c)
	}

	result, err := s.Librarian.ProcessTurn(c.Request().Context(), librarian.TurnRequest{
		Owner:          ownerOf(c),
		Text:           req.Message,
		ConversationID: req.ConversationID,
		GenerateImage:  req.GenerateImage,
		GenerateSpeech: req.GenerateSpeech,
	})
	if err != nil {
		return writeError(c, err)
	}

	setCurrentConversation(c, result.Conversation.ID)
	media := result.Media
	if media == nil {
		media = []librarian.MediaPayload{}
	}
	return c.JSON(http.StatusOK, sendMessageResponse{
		Conversation: convertConversation(result.Conversation),
		Messages:     convertMessages(result.Messages),
		Reply:        result.Reply,
		Media:        media,
		Reused:       result.Reused,
		Warning:      convertWarning(result.Warning),
		Echo:         result.Echo,
	})
}

func (s *APIV1Service) ListConversations(c echo.Context) error {
	list, err := s.Librarian.ListConversations(c.Request().Context(), ownerOf(c))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]*conversationJSON, 0, len(list))
	for _, conv := range list {
		out = append(out, convertConversation(conv))
	}
	return c.JSON(http.StatusOK, map[string]any{"conversations": out})
}

func (s *APIV1Service) CreateConversation(c echo.Context) error {
	conv, err := s.Librarian.NewConversation(c.Request().Context(), ownerOf(c))
	if err != nil {
		return writeError(c, err)
	}
	setCurrentConversation(c, conv.ID)
	return c.JSON(http.StatusCreated, map[string]any{"conversation": convertConversation(conv)})
}

func (s *APIV1Service) GetConversation(c echo.Context) error {
	id, ok := conversationIDParam(c)
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	conv, messages, err := s.Librarian.OpenConversation(c.Request().Context(), ownerOf(c), id)
	if err != nil {
		return writeError(c, err)
	}
	setCurrentConversation(c, conv.ID)
	return c.JSON(http.StatusOK, map[string]any{
		"conversation": convertConversation(conv),
		"messages":     convertMessages(messages),
	})
}

func (s *APIV1Service) DeleteConversation(c echo.Context) error {
	id, ok := conversationIDParam(c)
	if !ok {
		return badRequest(c, "invalid conversation id")
	}
	if err := s.Librarian.DeleteConversation(c.Request().Context(), ownerOf(c), id); err != nil {
		return writeError(c, err)
	}
	if currentConversation(c) == id {
		c.SetCookie(&http.Cookie{Name: CurrentConversationCookie, Path: "/", MaxAge: -1})
	}
	return c.NoContent(http.StatusNoContent)
}

// Transcribe accepts a multipart "audio" file with optional "language" and
// "prompt" fields.
func (s *APIV1Service) Transcribe(c echo.Context) error {
	if ownerOf(c) == "" {
		return writeError(c, &librarian.Error{Kind: librarian.KindUnauthorized, Message: "sign in to use voice input"})
	}
	header, err := c.FormFile("audio")
	if err != nil {
		return badRequest(c, "audio file is required")
	}
	f, err := header.Open()
	if err != nil {
		return badRequest(c, "audio file is unreadable")
	}
	defer f.Close()

	text, err := s.Librarian.Transcribe(c.Request().Context(), ownerOf(c), f, header.Filename, c.FormValue("language"), c.FormValue("prompt"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func conversationIDParam(c echo.Context) (int32, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

func currentConversation(c echo.Context) int32 {
	cookie, err := c.Cookie(CurrentConversationCookie)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(cookie.Value, 10, 32)
	if err != nil || id <= 0 {
		return 0
	}
	return int32(id)
}

func setCurrentConversation(c echo.Context, id int32) {
	c.SetCookie(&http.Cookie{
		Name:     CurrentConversationCookie,
		Value:    strconv.FormatInt(int64(id), 10),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
