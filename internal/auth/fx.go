package auth

import "go.uber.org/fx"

var Module = fx.Module("auth",
	fx.Provide(
		NewJWTVerifier,
		func(v *JWTVerifier) TokenVerifier { return v },
	),
	fx.Provide(NewEnforcer),
	fx.Provide(NewAuthorizer),
)
