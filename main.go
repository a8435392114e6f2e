package main

import (
	"log"
	"os"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/product-custody/chaincode/product-custody/contracts"
)

func main() {
	contract := &contracts.ProvenanceContract{
		StatusPolicy: statusPolicyFromEnv(),
		LazyStages:   os.Getenv("CUSTODY_LAZY_STAGES") == "true",
	}

	chaincode, err := contractapi.NewChaincode(contract)
	if err != nil {
		log.Fatalf("Error creating product custody chaincode: %v", err)
	}

	// Run as an external chaincode service when an address is configured,
	// otherwise as regular chaincode.
	if os.Getenv("CHAINCODE_SERVER_ADDRESS") != "" {
		runAsService(chaincode)
		return
	}

	if err := chaincode.Start(); err != nil {
		log.Fatalf("Error starting product custody chaincode: %v", err)
	}
}

func statusPolicyFromEnv() contracts.StatusPolicy {
	if os.Getenv("CUSTODY_STATUS_POLICY") == string(contracts.StatusPolicyTyped) {
		return contracts.StatusPolicyTyped
	}
	return contracts.StatusPolicyStaged
}
