package aliexpress

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// flexString accepts JSON strings, numbers and null.
// The platform is inconsistent about quoting IDs, counts and codes.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

func (f flexString) String() string {
	return string(f)
}

func (f flexString) Int64() (int64, bool) {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v), true
	}
	return 0, false
}

// isSuccessCode treats an absent code, "0" and "200" as success
func isSuccessCode(code flexString) bool {
	switch strings.TrimSpace(string(code)) {
	case "", "0", "200":
		return true
	default:
		return false
	}
}

// ErrorResponse is the platform error envelope
type ErrorResponse struct {
	Code      flexString `json:"code"`
	Msg       string     `json:"msg"`
	SubCode   string     `json:"sub_code"`
	SubMsg    string     `json:"sub_msg"`
	RequestID string     `json:"request_id"`
}

// toDomain converts the envelope to a PlatformApplicationError
func (e *ErrorResponse) toDomain() *sourcing.PlatformApplicationError {
	msg := e.Msg
	if e.SubMsg != "" {
		msg = e.SubMsg
	}
	return &sourcing.PlatformApplicationError{
		Code:      e.Code.String(),
		SubCode:   e.SubCode,
		Message:   msg,
		RequestID: e.RequestID,
	}
}

// ---------------------------------------------------------------------------
// Feed endpoint
// ---------------------------------------------------------------------------

type feedResponse struct {
	ErrorResponse *ErrorResponse  `json:"error_response,omitempty"`
	Response      *feedGetPayload `json:"aliexpress_ds_recommend_feed_get_response,omitempty"`
}

type feedGetPayload struct {
	Result    *feedResult `json:"result"`
	RspCode   flexString  `json:"rsp_code"`
	RspMsg    string      `json:"rsp_msg"`
	RequestID string      `json:"request_id"`
}

type feedResult struct {
	CurrentRecordCount flexString    `json:"current_record_count"`
	TotalRecordCount   flexString    `json:"total_record_count"`
	Products           *feedProducts `json:"products"`
}

type feedProducts struct {
	Items []feedProduct `json:"traffic_product_d_t_o"`
}

type stringList struct {
	Values []string `json:"string"`
}

type feedProduct struct {
	ProductID           flexString  `json:"product_id"`
	ProductTitle        string      `json:"product_title"`
	MainImageURL        string      `json:"product_main_image_url"`
	SmallImageURLs      *stringList `json:"product_small_image_urls"`
	TargetSalePrice     flexString  `json:"target_sale_price"`
	TargetOriginalPrice flexString  `json:"target_original_price"`
	DetailURL           string      `json:"product_detail_url"`
	EvaluateRate        string      `json:"evaluate_rate"`
	LatestVolume        flexString  `json:"lastest_volume"`
}

// ---------------------------------------------------------------------------
// Token endpoint
// ---------------------------------------------------------------------------

type tokenResponse struct {
	AccessToken      string         `json:"access_token"`
	RefreshToken     string         `json:"refresh_token"`
	ExpiresIn        flexString     `json:"expires_in"`
	TokenType        string         `json:"token_type"`
	UserID           flexString     `json:"user_id"`
	Code             flexString     `json:"code"`
	Message          string         `json:"message"`
	Error            string         `json:"error"`
	ErrorDescription string         `json:"error_description"`
	ErrorResponse    *ErrorResponse `json:"error_response,omitempty"`
}

// embeddedError returns the application error carried in a 2xx token response
func (t *tokenResponse) embeddedError() (code, message string, ok bool) {
	switch {
	case t.ErrorResponse != nil:
		msg := t.ErrorResponse.Msg
		if t.ErrorResponse.SubMsg != "" {
			msg = t.ErrorResponse.SubMsg
		}
		return t.ErrorResponse.Code.String(), msg, true
	case t.Error != "":
		return t.Error, t.ErrorDescription, true
	case !isSuccessCode(t.Code):
		return t.Code.String(), t.Message, true
	case t.AccessToken == "":
		return "", "response has no access_token", true
	}
	return "", "", false
}
