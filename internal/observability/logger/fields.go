package logger

import "go.uber.org/zap"

// Request HTTP.

func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

func Method(v string) zap.Field {
	return zap.String("method", v)
}

func Path(v string) zap.Field {
	return zap.String("path", v)
}

func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field {
	return zap.Int64("duration_ms", v)
}

func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// ClientIP crea un campo para la IP del cliente.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// UserAgent crea un campo para el User-Agent.
func UserAgent(v string) zap.Field {
	return zap.String("user_agent", v)
}

// Ingesta y credenciales.

// PrincipalID crea un campo para el dueño autenticado de la credencial.
func PrincipalID(v string) zap.Field {
	return zap.String("principal_id", v)
}

// TokenID crea un campo para el ID de la credencial API.
func TokenID(v string) zap.Field {
	return zap.String("token_id", v)
}

// DeviceID crea un campo para el dispositivo del companion app.
func DeviceID(v string) zap.Field {
	return zap.String("device_id", v)
}

// Endpoint crea un campo para la clase de endpoint (inbox | inbox_batch).
func Endpoint(v string) zap.Field {
	return zap.String("endpoint", v)
}

// ClientItemID crea un campo para el clientId enviado por el companion app.
func ClientItemID(v string) zap.Field {
	return zap.String("client_item_id", v)
}

// ItemIndex crea un campo para la posición de un item dentro de un batch.
func ItemIndex(v int) zap.Field {
	return zap.Int("item_index", v)
}

// AuthKind crea un campo para el tipo de falla de autenticación.
func AuthKind(v string) zap.Field {
	return zap.String("auth_kind", v)
}

// Componentes y errores.

// Component crea un campo para el componente/módulo.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op crea un campo para la operación actual.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Err crea un campo para un error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Genéricos.

func Count(v int) zap.Field {
	return zap.Int("count", v)
}

// ID crea un campo genérico para un ID.
func ID(v string) zap.Field {
	return zap.String("id", v)
}

// Key crea un campo genérico para una clave.
func Key(v string) zap.Field {
	return zap.String("key", v)
}

func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

func String(key, v string) zap.Field {
	return zap.String(key, v)
}

func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
