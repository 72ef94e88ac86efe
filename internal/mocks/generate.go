package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name OfficialSource --dir ../domain/draw --output domain/draw --outpkg drawmock --filename official_source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name HistorySource --dir ../domain/draw --output domain/draw --outpkg drawmock --filename history_source_mock.go
