package account

// Inbound events.
const (
	EventAccountCreate = "AccountCreate"
	EventAccountLogin  = "AccountLogin"
	EventAccountUpdate = "AccountUpdate"
	EventAccountBeep   = "AccountBeep"
	EventAccountQuery  = "AccountQuery"
)

// Outbound events.
const (
	EventCreationResponse   = "CreationResponse"
	EventLoginResponse      = "LoginResponse"
	EventLoginQueue         = "LoginQueue"
	EventForceDisconnect    = "ForceDisconnect"
	EventAccountQueryResult = "AccountQueryResult"
	EventServerInfo         = "ServerInfo"
	EventMessage            = "message"
)

// Reply strings.
const (
	MsgInvalidAccountName     = "Invalid account name"
	MsgInvalidPassword        = "Invalid password"
	MsgInvalidCharacterName   = "Invalid character name"
	MsgInvalidEmail           = "Invalid email address"
	MsgAccountsPerDayExceeded = "New accounts per day exceeded"
	MsgAccountExists          = "Account already exists"
	MsgServerError            = "Server error"
	MsgInvalidRequest         = "Invalid request data"
	MsgAccountCreated         = "AccountCreated"
	MsgInvalidNamePassword    = "InvalidNamePassword"
	MsgLoginServerError       = "ServerError"
	MsgDuplicatedLogin        = "ErrorDuplicatedLogin"
	MsgWelcome                = "Welcum to Bondage Club!"
)

// Queries understood by AccountQuery.
const (
	QueryOnlineFriends = "OnlineFriends"
	QueryEmailStatus   = "EmailStatus"
)

// Friend record types.
const (
	FriendTypeFriend     = "Friend"
	FriendTypeSubmissive = "Submissive"
)

// BeepTypeLeash is the only typed beep that is relayed.
const BeepTypeLeash = "Leash"
