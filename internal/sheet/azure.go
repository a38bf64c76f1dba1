package sheet

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const graphScope = "https://graph.microsoft.com/.default"

// AzureTokenProvider acquires application tokens for the workbook API using
// client-secret credentials. The SDK caches and refreshes tokens internally.
type AzureTokenProvider struct {
	cred *azidentity.ClientSecretCredential
}

func NewAzureTokenProvider(directoryID, appID, clientSecret string) (*AzureTokenProvider, error) {
	cred, err := azidentity.NewClientSecretCredential(directoryID, appID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("build azure credential: %w", err)
	}
	return &AzureTokenProvider{cred: cred}, nil
}

func (p *AzureTokenProvider) Token(ctx context.Context) (string, error) {
	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
	if err != nil {
		return "", fmt.Errorf("acquire graph token: %w", err)
	}
	return token.Token, nil
}
