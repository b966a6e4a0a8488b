// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"retail-chatbot/internal/runtime/session"
	"retail-chatbot/internal/tool"
	"retail-chatbot/pkg/config"
)

// otpResult 统一的 OTP 工具输出结构，模型按 data.answer 转述
type otpResult struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

func otpResultJSON(status, answer string, extra map[string]any) tool.Result {
	data := map[string]any{"answer": answer}
	for k, v := range extra {
		data[k] = v
	}
	content, _ := json.Marshal(otpResult{Status: status, Data: data})
	res := tool.Result{Content: string(content)}
	if status != "success" {
		res.Err = answer
	}
	return res
}

// validPhone 校验 10-15 位纯数字手机号
func validPhone(phone string) bool {
	if len(phone) < 10 || len(phone) > 15 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SendOTP 发送验证码工具。成功后把会话认证状态置为待验证。
type SendOTP struct {
	baseURL  string
	secret   string
	sessions session.Store
	client   *resty.Client
}

// NewSendOTP 创建发送验证码工具
func NewSendOTP(cfg config.ToolsConfig, sessions session.Store) *SendOTP {
	return &SendOTP{
		baseURL:  strings.TrimRight(cfg.PortalBaseURL, "/"),
		secret:   cfg.ChatbotSecret,
		sessions: sessions,
		client:   newPortalClient(cfg),
	}
}

func (s *SendOTP) Name() string { return "send_otp" }

func (s *SendOTP) Description() string {
	return "Send a one-time verification code to the customer's phone number. " +
		"Phone must be 10-15 digits."
}

func (s *SendOTP) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"phone": {Type: "string", Description: "Customer phone number, digits only"},
		},
		Required: []string{"phone"},
	}
}

// Execute 发送验证码
func (s *SendOTP) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	phone := strings.TrimSpace(asString(args["phone"]))
	if !validPhone(phone) {
		return otpResultJSON("error", "Invalid phone number format. Please provide 10-15 digits.", nil), nil
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("x-chatbot-auth", s.secret).
		SetFormData(map[string]string{
			"user_name":       phone,
			"recaptcha_token": "chatbot-bypass-token",
		}).
		Post(s.baseURL + "/user/send_chatbot_otp")
	if err != nil {
		return otpResultJSON("error", "We're currently unable to reach our OTP service. Please try again in a moment.", nil), nil
	}

	var result struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if response.StatusCode() != http.StatusOK {
		if unmarshalBody(response.Body(), &result) == nil && result.Message != "" {
			return otpResultJSON("error", result.Message, nil), nil
		}
		return otpResultJSON("error", fmt.Sprintf("HTTP Error %d", response.StatusCode()), nil), nil
	}
	if err := unmarshalBody(response.Body(), &result); err != nil {
		return otpResultJSON("error", "Invalid response from server", nil), nil
	}
	if result.Error != "0" {
		msg := result.Message
		if msg == "" {
			msg = "Failed to send OTP"
		}
		return otpResultJSON("error", msg, nil), nil
	}

	if sid := SessionIDFromContext(ctx); sid != "" {
		s.sessions.SaveAuth(ctx, sid, session.AuthState{Status: session.AuthPending, Phone: phone})
	}

	msg := result.Message
	if msg == "" {
		msg = "OTP sent successfully"
	}
	return otpResultJSON("success", msg, map[string]any{"otp_sent": true}), nil
}

// VerifyOTP 校验验证码工具。校验通过把会话认证状态置为已认证。
type VerifyOTP struct {
	baseURL  string
	secret   string
	sessions session.Store
	client   *resty.Client
}

// NewVerifyOTP 创建校验验证码工具
func NewVerifyOTP(cfg config.ToolsConfig, sessions session.Store) *VerifyOTP {
	return &VerifyOTP{
		baseURL:  strings.TrimRight(cfg.PortalBaseURL, "/"),
		secret:   cfg.ChatbotSecret,
		sessions: sessions,
		client:   newPortalClient(cfg),
	}
}

func (v *VerifyOTP) Name() string { return "verify_otp" }

func (v *VerifyOTP) Description() string {
	return "Verify the one-time code the customer received on their phone."
}

func (v *VerifyOTP) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]tool.SchemaProperty{
			"phone": {Type: "string", Description: "Phone number the code was sent to"},
			"code":  {Type: "string", Description: "The one-time code entered by the customer"},
		},
		Required: []string{"phone", "code"},
	}
}

// Execute 校验验证码并更新会话认证状态
func (v *VerifyOTP) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	phone := strings.TrimSpace(asString(args["phone"]))
	code := strings.TrimSpace(asString(args["code"]))
	if !validPhone(phone) {
		return otpResultJSON("error", "Invalid phone number format. Please provide 10-15 digits.", nil), nil
	}

	form := map[string]string{
		"user_name": phone,
		"otp":       code,
	}
	sid := SessionIDFromContext(ctx)
	if sid != "" {
		form["session_id"] = sid
	}

	response, err := v.client.R().
		SetContext(ctx).
		SetHeader("x-chatbot-auth", v.secret).
		SetFormData(form).
		Post(v.baseURL + "/user/verify_chatbot_otp")
	if err != nil {
		return otpResultJSON("error", "An unexpected error occurred while verifying the OTP.", nil), nil
	}

	var result struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if response.StatusCode() != http.StatusOK {
		if unmarshalBody(response.Body(), &result) == nil && result.Message != "" {
			return otpResultJSON("error", result.Message, nil), nil
		}
		return otpResultJSON("error", fmt.Sprintf("HTTP Error %d", response.StatusCode()), nil), nil
	}
	if err := unmarshalBody(response.Body(), &result); err != nil {
		return otpResultJSON("error", "Invalid response from server", nil), nil
	}

	verified := result.Error == "0"
	if verified && sid != "" {
		v.sessions.SaveAuth(ctx, sid, session.AuthState{Status: session.AuthVerified, Phone: phone})
	}

	msg := result.Message
	if msg == "" {
		msg = "OTP verification completed"
	}
	status := "error"
	if verified {
		status = "success"
	}
	return otpResultJSON(status, msg, map[string]any{"verified": verified}), nil
}
