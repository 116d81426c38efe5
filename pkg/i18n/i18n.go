package i18n

import (
	"reflect"
	"strings"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Template is a notification title and body with {{KEY}} placeholders.
type Template struct {
	Title string
	Body  string
}

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting        string
	ConfigLoaded    string
	ServerListening string
	ShuttingDown    string
	CatalogSynced   string
	AdminBootstrap  string

	// Account
	Register           Template
	Verified           Template
	VerificationResent Template
	Login              Template

	// Admin feed
	UserRegistered Template
	UserVerified   Template
	UserLoggedIn   Template
	ProfileUpdated Template

	// Transactions
	TransactionSubmitted      Template
	TransactionSubmittedAdmin Template
	TransactionStatusChanged  Template
	AccountFunded             Template
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	Starting:        "Starting investment core...",
	ConfigLoaded:    "Config loaded",
	ServerListening: "Server listening",
	ShuttingDown:    "Shutting down gracefully...",
	CatalogSynced:   "Bot catalog synced",
	AdminBootstrap:  "Bootstrap admin ensured",

	Register: Template{
		Title: "Verify Your Email",
		Body:  "Enter the verification code {{CODE}} sent to {{EMAIL}}.",
	},
	Verified: Template{
		Title: "Account Verified",
		Body:  "Your email verification was successful!",
	},
	VerificationResent: Template{
		Title: "Verification Code Resent",
		Body:  "A new verification code {{CODE}} has been sent to {{EMAIL}}.",
	},
	Login: Template{
		Title: "Login Successful",
		Body:  "You logged in successfully.",
	},

	UserRegistered: Template{
		Title: "New Registration",
		Body:  "{{EMAIL}} registered and needs to verify email.",
	},
	UserVerified: Template{
		Title: "New User Verified",
		Body:  "{{EMAIL}} registered and verified successfully.",
	},
	UserLoggedIn: Template{
		Title: "User Logged In",
		Body:  "{{EMAIL}} logged in.",
	},
	ProfileUpdated: Template{
		Title: "User Profile Updated",
		Body:  "{{EMAIL}} updated their profile information: {{FIELDS}}.",
	},

	TransactionSubmitted: Template{
		Title: "Transaction Submitted",
		Body:  "Your {{TYPE}} of {{AMOUNT}} {{MODE}} was received and is {{STATUS}}.",
	},
	TransactionSubmittedAdmin: Template{
		Title: "New Transaction",
		Body:  "{{EMAIL}} submitted a {{TYPE}} of {{AMOUNT}} {{MODE}}.",
	},
	TransactionStatusChanged: Template{
		Title: "Transaction Updated",
		Body:  "Your {{TYPE}} of {{AMOUNT}} {{MODE}} is now {{STATUS}}.",
	},
	AccountFunded: Template{
		Title: "Account Funded",
		Body:  "Your account was credited with {{AMOUNT}} {{MODE}}.",
	},
}

// Chinese messages
var messagesZH = Messages{
	Starting:        "投資核心啟動中...",
	ConfigLoaded:    "設定已載入",
	ServerListening: "伺服器監聽中",
	ShuttingDown:    "正在優雅關閉...",
	CatalogSynced:   "機器人目錄已同步",
	AdminBootstrap:  "預設管理員已確認",

	Register: Template{
		Title: "驗證您的電子郵件",
		Body:  "請輸入寄送至 {{EMAIL}} 的驗證碼 {{CODE}}。",
	},
	Verified: Template{
		Title: "帳戶已驗證",
		Body:  "您的電子郵件驗證成功！",
	},
	VerificationResent: Template{
		Title: "驗證碼已重新寄送",
		Body:  "新的驗證碼 {{CODE}} 已寄送至 {{EMAIL}}。",
	},
	Login: Template{
		Title: "登入成功",
		Body:  "您已成功登入。",
	},

	UserRegistered: Template{
		Title: "新註冊",
		Body:  "{{EMAIL}} 已註冊，等待驗證電子郵件。",
	},
	UserVerified: Template{
		Title: "新用戶已驗證",
		Body:  "{{EMAIL}} 已完成註冊與驗證。",
	},
	UserLoggedIn: Template{
		Title: "用戶登入",
		Body:  "{{EMAIL}} 已登入。",
	},
	ProfileUpdated: Template{
		Title: "用戶資料已更新",
		Body:  "{{EMAIL}} 更新了個人資料：{{FIELDS}}。",
	},

	TransactionSubmitted: Template{
		Title: "交易已提交",
		Body:  "您的 {{TYPE}}（{{AMOUNT}} {{MODE}}）已收到，目前狀態：{{STATUS}}。",
	},
	TransactionSubmittedAdmin: Template{
		Title: "新交易",
		Body:  "{{EMAIL}} 提交了 {{TYPE}}：{{AMOUNT}} {{MODE}}。",
	},
	TransactionStatusChanged: Template{
		Title: "交易狀態更新",
		Body:  "您的 {{TYPE}}（{{AMOUNT}} {{MODE}}）目前狀態：{{STATUS}}。",
	},
	AccountFunded: Template{
		Title: "帳戶已入金",
		Body:  "您的帳戶已入帳 {{AMOUNT}} {{MODE}}。",
	},
}

func init() {
	messages = &messagesEN
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}

var templateType = reflect.TypeOf(Template{})

// GetTemplate looks up a notification template by field name.
func GetTemplate(key string) (Template, bool) {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Type() == templateType {
		return f.Interface().(Template), true
	}
	return Template{}, false
}

// Render substitutes {{KEY}} placeholders in both title and body.
// Unknown placeholders are left as they are.
func Render(t Template, params map[string]string) Template {
	if len(params) == 0 {
		return t
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return Template{Title: r.Replace(t.Title), Body: r.Replace(t.Body)}
}
