package config

const EnvPrefix = "MEALBOX"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "MEALBOX_APP_ENV"
	EnvPort    = "MEALBOX_APP_PORT"
	EnvLogLvl  = "MEALBOX_LOG_LEVEL"
	EnvSvcKind = "MEALBOX_SERVICE_KIND"

	EnvDBDSN  = "MEALBOX_DB_DSN"
	EnvDBHost = "MEALBOX_DB_HOST"
	EnvDBUser = "MEALBOX_DB_USER"
	EnvDBName = "MEALBOX_DB_NAME"

	EnvRedisURL = "MEALBOX_REDIS_URL"

	EnvJWTSecret  = "MEALBOX_JWT_SECRET"
	EnvJWTIssuer  = "MEALBOX_JWT_ISSUER"
	EnvJWTExpMins = "MEALBOX_JWT_EXPIRATION_MINUTES"

	EnvStripeAPIKey    = "MEALBOX_STRIPE_API_KEY"
	EnvStripeSecret    = "MEALBOX_STRIPE_SECRET"
	EnvStripeProductID = "MEALBOX_STRIPE_PRODUCT_ID"

	EnvCaloriePrice          = "MEALBOX_CALORIE_PRICE"
	EnvShippingCharge        = "MEALBOX_SHIPPING_CHARGE"
	EnvCurrency              = "MEALBOX_CURRENCY_TYPE"
	EnvFreeShippingThreshold = "MEALBOX_MINIMUM_ORDER_VALUE_FOR_FREE_SHIPPING"

	EnvAutoConfirmHour     = "MEALBOX_AUTO_CONFIRM_HOUR"
	EnvAutoConfirmMinute   = "MEALBOX_AUTO_CONFIRM_MINUTE"
	EnvAutoConfirmTimezone = "MEALBOX_AUTO_CONFIRM_TIMEZONE"
	EnvAutoConfirmThrottle = "MEALBOX_AUTO_CONFIRM_THROTTLE"

	EnvSupportEmails = "MEALBOX_SUPPORT_USER_EMAIL"
	EnvSendgridKey   = "MEALBOX_SENDGRID_API_KEY"
	EnvSendgridFrom  = "MEALBOX_SENDGRID_FROM_EMAIL"
	EnvReportsTopic  = "MEALBOX_PUBSUB_REPORTS_TOPIC"

	EnvGCPProjectID = "MEALBOX_GCP_PROJECT_ID"

	EnvDBQueryTimeout     = "MEALBOX_DB_QUERY_TIMEOUT"
	EnvCORSAllowedOrigins = "MEALBOX_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
